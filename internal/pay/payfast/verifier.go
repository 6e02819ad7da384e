package payfast

import (
	"context"
	"log/slog"
	"slices"

	"paybridge/internal/types"
)

// validHosts are the hostnames genuine PayFast notifications originate
// from. The origin gate resolves them and requires the delivery's
// forwarded-for address to be among the results.
var validHosts = []string{
	"www.payfast.co.za",
	"sandbox.payfast.co.za",
	"w1w.payfast.co.za",
	"w2w.payfast.co.za",
}

// ServerConfirmer posts a canonical parameter string back to PayFast's
// synchronous validation endpoint. Implemented by external.PayfastClient.
type ServerConfirmer interface {
	// Confirm returns nil only when PayFast acknowledges the notification
	// as genuine. Any error -- non-VALID answer or transport failure -- is
	// fatal for the delivery being verified.
	Confirm(ctx context.Context, paramString string) error
}

// AddressResolver resolves hostnames to the union of their IP addresses.
// Implemented by external.HostResolver.
type AddressResolver interface {
	Resolve(ctx context.Context, hosts []string) ([]string, error)
}

// Verifier authenticates inbound PayFast notifications. Each delivery walks
// the same gate sequence: signature check, then the optional origin check,
// then the optional server confirmation. Every gate is fatal on failure and
// later gates never run after a rejection.
//
// A Verifier holds no per-delivery state; concurrent verifications need no
// locking.
type Verifier struct {
	passphrase   types.SecretString
	checkAddress bool
	checkServer  bool
	resolver     AddressResolver
	confirmer    ServerConfirmer
	logger       *slog.Logger
}

// VerifierOptions configures a Verifier. Resolver is required when
// CheckAddress is set, Confirmer when CheckServer is set.
type VerifierOptions struct {
	Passphrase   types.SecretString
	CheckAddress bool
	CheckServer  bool
	Resolver     AddressResolver
	Confirmer    ServerConfirmer
	Logger       *slog.Logger
}

// NewVerifier creates a Verifier from the given options.
func NewVerifier(opts VerifierOptions) *Verifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		passphrase:   opts.Passphrase,
		checkAddress: opts.CheckAddress,
		checkServer:  opts.CheckServer,
		resolver:     opts.Resolver,
		confirmer:    opts.Confirmer,
		logger:       logger,
	}
}

// Verify authenticates a delivery and returns its ordered field list. The
// returned fields are trusted: they carry a signature recomputed and matched
// over the exact wire order, and have passed whichever secondary gates are
// enabled. Callers normalize from the returned fields only, never from the
// unverified delivery body.
func (v *Verifier) Verify(ctx context.Context, delivery types.WebhookDelivery) ([]Field, error) {
	fields, err := ParseFields(delivery.RawBody)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeMalformedPayload,
			"notification body is not a flat field mapping",
			err,
		)
	}

	suppliedSig, ok := FieldValue(fields, signatureKey)
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeSignatureMismatch,
			"notification carries no signature field",
			nil,
		)
	}

	paramString := ParamString(fields)
	// TODO: switch to subtle.ConstantTimeCompare.
	if Sign(paramString, v.passphrase) != suppliedSig {
		return nil, types.NewAppError(
			types.ErrCodeSignatureMismatch,
			"recomputed signature does not match the supplied one",
			nil,
		)
	}

	if v.checkAddress {
		if err := v.verifyOrigin(ctx, delivery); err != nil {
			return nil, err
		}
	}

	if v.checkServer {
		if err := v.confirmer.Confirm(ctx, paramString); err != nil {
			return nil, types.NewAppError(
				types.ErrCodeServerConfirmationFailed,
				"payfast did not confirm the notification",
				err,
			)
		}
	}

	return fields, nil
}

// verifyOrigin resolves the known PayFast hosts and rejects the delivery
// unless its forwarded-for address is among the resolved set.
func (v *Verifier) verifyOrigin(ctx context.Context, delivery types.WebhookDelivery) error {
	addr := delivery.ForwardedFor()
	if addr == "" {
		return types.NewAppError(
			types.ErrCodeOriginNotTrusted,
			"delivery carries no forwarded-for address",
			nil,
		)
	}

	allowed, err := v.resolver.Resolve(ctx, validHosts)
	if err != nil {
		// Resolution failure means the allow-list cannot be built; the
		// delivery cannot be vouched for.
		return types.NewAppError(
			types.ErrCodeOriginNotTrusted,
			"failed to resolve payfast hosts",
			err,
		)
	}

	if !slices.Contains(allowed, addr) {
		v.logger.WarnContext(ctx, "payfast origin check rejected delivery",
			"forwarded_for", addr,
		)
		return types.NewAppError(
			types.ErrCodeOriginNotTrusted,
			"forwarded-for address is not a payfast address",
			nil,
		).WithDetails(map[string]any{"forwarded_for": addr})
	}

	return nil
}
