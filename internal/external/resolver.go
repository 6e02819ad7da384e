package external

import (
	"context"
	"net"
	"sort"

	"golang.org/x/sync/errgroup"
)

// LookupFunc resolves a hostname to its addresses. It matches the signature
// of net.Resolver.LookupHost and allows injection for testing.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// HostResolver resolves a set of hostnames to the union of their IP
// addresses. The origin gate of the PayFast verifier uses it to build the
// allow-list of addresses a genuine notification may arrive from.
type HostResolver struct {
	lookup LookupFunc
}

// NewHostResolver creates a HostResolver backed by the default system
// resolver.
func NewHostResolver() *HostResolver {
	return &HostResolver{lookup: net.DefaultResolver.LookupHost}
}

// NewHostResolverWithLookup creates a HostResolver with an injected lookup
// function, for tests.
func NewHostResolverWithLookup(lookup LookupFunc) *HostResolver {
	return &HostResolver{lookup: lookup}
}

// Resolve looks up every host concurrently and returns the deduplicated,
// sorted union of their addresses. A failure resolving any host fails the
// whole call: a partial allow-list could reject genuine deliveries from the
// unresolved host, which reads as forgery to the caller.
func (r *HostResolver) Resolve(ctx context.Context, hosts []string) ([]string, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([][]string, len(hosts))

	for i, host := range hosts {
		g.Go(func() error {
			addrs, err := r.lookup(ctx, host)
			if err != nil {
				return err
			}
			results[i] = addrs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var union []string
	for _, addrs := range results {
		for _, a := range addrs {
			if !seen[a] {
				seen[a] = true
				union = append(union, a)
			}
		}
	}
	sort.Strings(union)
	return union, nil
}
