package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"licenseapi/pkg/contracts/domain"
)

// emailPattern mirrors the permissive check used at issuance: one @ with
// non-space text around it and a dot in the domain part.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// insertAttempts bounds key regeneration when the store reports a key
// collision. With 122 random bits a single retry is already paranoia.
const insertAttempts = 3

// IssueFlow selects the initial status of a newly issued license.
type IssueFlow string

const (
	// FlowAdmin issues directly in active status (manual issuance).
	FlowAdmin IssueFlow = "admin"
	// FlowPurchase issues in pending status until the first activation.
	FlowPurchase IssueFlow = "purchase"
)

// Options configures engine policy.
type Options struct {
	// AllowDuplicateEmails disables the one-license-per-email policy
	// check at issuance.
	AllowDuplicateEmails bool

	// StoreTimeout bounds every store call. Expiry surfaces as
	// ErrStoreUnavailable to the caller.
	StoreTimeout time.Duration

	// ProductName is stamped on issued licenses.
	ProductName string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultStoreTimeout is used when Options.StoreTimeout is zero.
const DefaultStoreTimeout = 5 * time.Second

// Engine is the license lifecycle state machine. It is safe for concurrent
// use; all per-key serialization is delegated to the store.
type Engine struct {
	store  Store
	keys   KeyGenerator
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewEngine creates a lifecycle engine on top of a store.
func NewEngine(store Store, keys KeyGenerator, opts Options, logger *slog.Logger) *Engine {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:  store,
		keys:   keys,
		opts:   opts,
		logger: logger.With(slog.String("component", "license_engine")),
		tracer: otel.Tracer("license-engine"),
		now:    now,
	}
}

// Issue creates a new license for a customer. FlowAdmin issues in active
// status, FlowPurchase in pending status. When the duplicate-email policy is
// enforced and a non-revoked license already exists for the email, Issue
// returns a DuplicateEmailError carrying the existing key.
func (e *Engine) Issue(ctx context.Context, email, customerName string, flow IssueFlow) (*domain.License, error) {
	ctx, span := e.tracer.Start(ctx, "license_engine.issue",
		trace.WithAttributes(attribute.String("flow", string(flow))))
	defer span.End()

	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if customerName == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}

	if !e.opts.AllowDuplicateEmails {
		existing, err := e.findActiveByEmail(ctx, email)
		switch {
		case err == nil:
			e.logger.WarnContext(ctx, "issue blocked by duplicate email policy",
				slog.String("email", email),
				slog.String("existing_key", MaskKey(existing.LicenseKey)))
			return nil, &DuplicateEmailError{Email: email, ExistingKey: existing.LicenseKey}
		case errors.Is(err, ErrNotFound):
			// No non-revoked license yet, proceed.
		default:
			return nil, err
		}
	}

	status := domain.LicenseStatusActive
	if flow == FlowPurchase {
		status = domain.LicenseStatusPending
	}

	now := e.now()
	var lic *domain.License
	for attempt := 0; attempt < insertAttempts; attempt++ {
		lic = &domain.License{
			LicenseKey:     e.keys.NewKey(),
			Email:          email,
			CustomerName:   customerName,
			ProductName:    e.opts.ProductName,
			Status:         status,
			CreatedAt:      now,
			ExpirationDate: now.Add(domain.LicenseValidityPeriod),
		}
		err := e.insert(ctx, lic)
		if errors.Is(err, ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return nil, err
		}
		e.logger.InfoContext(ctx, "license issued",
			slog.String("license_key", MaskKey(lic.LicenseKey)),
			slog.String("email", email),
			slog.String("status", string(status)))
		return lic, nil
	}
	return nil, fmt.Errorf("%w: key collision persisted across %d attempts", ErrStoreUnavailable, insertAttempts)
}

// Activate binds a device to a license, or re-runs idempotently for the
// already-bound device. Revocation takes precedence over device matching:
// a revoked license is rejected before the device comparison.
func (e *Engine) Activate(ctx context.Context, key, deviceID string, deviceInfo map[string]string) (*domain.ActivationResult, error) {
	ctx, span := e.tracer.Start(ctx, "license_engine.activate")
	defer span.End()

	if !ValidKeyFormat(key) {
		return nil, fmt.Errorf("%w: malformed license key", ErrInvalidInput)
	}
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}
	key = NormalizeKey(key)

	lic, err := e.findByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	now := e.now()
	switch {
	case lic.IsRevoked():
		return nil, ErrRevoked

	case !lic.IsBound():
		// First activation: bind the device. The unbound expectation makes
		// the losing side of a concurrent first-activation race fail here
		// instead of silently double-binding.
		err := e.updateWhere(ctx, key,
			Expectation{
				DeviceID:  StringPtr(""),
				NotStatus: StatusPtr(domain.LicenseStatusRevoked),
			},
			Mutation{
				Status:         StatusPtr(domain.LicenseStatusActive),
				DeviceID:       StringPtr(deviceID),
				DeviceInfo:     deviceInfo,
				ActivatedAt:    TimePtr(now),
				LastVerifiedAt: TimePtr(now),
			})
		if errors.Is(err, ErrPreconditionFailed) {
			return nil, e.classifyActivationConflict(ctx, key, deviceID)
		}
		if err != nil {
			return nil, err
		}
		e.logger.InfoContext(ctx, "license activated",
			slog.String("license_key", MaskKey(key)),
			slog.String("device_id", deviceID))
		return &domain.ActivationResult{
			Valid:       true,
			Outcome:     domain.OutcomeActivated,
			Message:     "License activated successfully",
			ActivatedAt: &now,
		}, nil

	case lic.DeviceID == deviceID:
		// Idempotent reactivation: refresh the verification timestamp and
		// force status back to active.
		err := e.updateWhere(ctx, key,
			Expectation{
				DeviceID:  StringPtr(deviceID),
				NotStatus: StatusPtr(domain.LicenseStatusRevoked),
			},
			Mutation{
				Status:         StatusPtr(domain.LicenseStatusActive),
				LastVerifiedAt: TimePtr(now),
			})
		if errors.Is(err, ErrPreconditionFailed) {
			return nil, e.classifyActivationConflict(ctx, key, deviceID)
		}
		if err != nil {
			return nil, err
		}
		e.logger.InfoContext(ctx, "license reactivated",
			slog.String("license_key", MaskKey(key)),
			slog.String("device_id", deviceID))
		return &domain.ActivationResult{
			Valid:       true,
			Outcome:     domain.OutcomeReactivated,
			Message:     "License reactivated successfully",
			ActivatedAt: lic.ActivatedAt,
		}, nil

	default:
		return nil, ErrDeviceConflict
	}
}

// classifyActivationConflict re-reads a license after a failed conditional
// update and maps the observed state to the taxonomy error the caller would
// have received had it seen that state first.
func (e *Engine) classifyActivationConflict(ctx context.Context, key, deviceID string) error {
	lic, err := e.findByKey(ctx, key)
	if err != nil {
		return err
	}
	switch {
	case lic.IsRevoked():
		return ErrRevoked
	case lic.IsBound() && lic.DeviceID != deviceID:
		return ErrDeviceConflict
	default:
		// The record moved under us but into a compatible state, e.g. the
		// same device won a concurrent activation. Retrying here would
		// succeed; the caller retries instead, per the no-internal-retry
		// policy.
		return fmt.Errorf("%w: concurrent update", ErrStoreUnavailable)
	}
}

// Verify checks that a license is active and bound to the presented device,
// and refreshes the last-verified timestamp. It never mutates status or
// device binding.
func (e *Engine) Verify(ctx context.Context, key, deviceID string) (*domain.VerificationResult, error) {
	ctx, span := e.tracer.Start(ctx, "license_engine.verify")
	defer span.End()

	if key == "" || deviceID == "" {
		return nil, fmt.Errorf("%w: license key and device id are required", ErrInvalidInput)
	}
	key = NormalizeKey(key)

	lic, err := e.findByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if lic.Status != domain.LicenseStatusActive {
		return nil, ErrInactive
	}
	if lic.DeviceID != deviceID {
		return nil, ErrDeviceConflict
	}

	now := e.now()
	err = e.updateWhere(ctx, key,
		Expectation{
			DeviceID: StringPtr(deviceID),
			Status:   StatusPtr(domain.LicenseStatusActive),
		},
		Mutation{LastVerifiedAt: TimePtr(now)})
	if errors.Is(err, ErrPreconditionFailed) {
		// Revoked or rebound between read and write.
		return nil, ErrInactive
	}
	if err != nil {
		return nil, err
	}

	return &domain.VerificationResult{
		Valid:      true,
		Message:    "License valid",
		VerifiedAt: now,
	}, nil
}

// Revoke moves a license to the terminal revoked state regardless of its
// prior status. Revoking an already-revoked license succeeds silently and
// leaves the original revocation timestamp untouched.
func (e *Engine) Revoke(ctx context.Context, key string) (*domain.RevocationResult, error) {
	ctx, span := e.tracer.Start(ctx, "license_engine.revoke")
	defer span.End()

	if key == "" {
		return nil, fmt.Errorf("%w: license key is required", ErrInvalidInput)
	}
	key = NormalizeKey(key)

	err := e.updateWhere(ctx, key,
		Expectation{NotStatus: StatusPtr(domain.LicenseStatusRevoked)},
		Mutation{
			Status:    StatusPtr(domain.LicenseStatusRevoked),
			RevokedAt: TimePtr(e.now()),
		})
	switch {
	case errors.Is(err, ErrPreconditionFailed):
		// Already revoked, idempotent success.
	case err != nil:
		return nil, err
	}

	e.logger.InfoContext(ctx, "license revoked",
		slog.String("license_key", MaskKey(key)))
	return &domain.RevocationResult{
		Success:  true,
		Message:  "License revoked",
		Affected: 1,
	}, nil
}

// RevokeByEmail revokes every non-revoked license for an email and reports
// the number affected. Zero matches succeeds.
func (e *Engine) RevokeByEmail(ctx context.Context, email string) (*domain.RevocationResult, error) {
	ctx, span := e.tracer.Start(ctx, "license_engine.revoke_by_email")
	defer span.End()

	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}

	opCtx, cancel := e.storeContext(ctx)
	defer cancel()
	affected, err := e.store.RevokeAllByEmail(opCtx, email, e.now())
	if err != nil {
		return nil, e.mapStoreErr(opCtx, err)
	}

	e.logger.InfoContext(ctx, "licenses revoked by email",
		slog.String("email", email),
		slog.Int64("affected", affected))
	return &domain.RevocationResult{
		Success:  true,
		Message:  fmt.Sprintf("Revoked %d license(s)", affected),
		Affected: affected,
	}, nil
}

// RebindDevice is the administrative override that moves a license to a new
// device, bypassing the exclusivity check in Activate. It replaces the
// binding and refreshes the verification timestamp; status is untouched, so
// rebinding does not resurrect a revoked license.
func (e *Engine) RebindDevice(ctx context.Context, key, newDeviceID string) error {
	ctx, span := e.tracer.Start(ctx, "license_engine.rebind_device")
	defer span.End()

	if key == "" || newDeviceID == "" {
		return fmt.Errorf("%w: license key and device id are required", ErrInvalidInput)
	}
	key = NormalizeKey(key)

	err := e.updateWhere(ctx, key,
		Expectation{},
		Mutation{
			DeviceID:       StringPtr(newDeviceID),
			LastVerifiedAt: TimePtr(e.now()),
		})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "license device rebound",
		slog.String("license_key", MaskKey(key)),
		slog.String("new_device_id", newDeviceID))
	return nil
}

// Get returns a license by key for administrative inspection.
func (e *Engine) Get(ctx context.Context, key string) (*domain.License, error) {
	if !ValidKeyFormat(key) {
		return nil, fmt.Errorf("%w: malformed license key", ErrInvalidInput)
	}
	return e.findByKey(ctx, NormalizeKey(key))
}

// Store call wrappers: apply the bounded timeout and map infrastructure
// failures to ErrStoreUnavailable.

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.StoreTimeout)
}

func (e *Engine) findByKey(ctx context.Context, key string) (*domain.License, error) {
	opCtx, cancel := e.storeContext(ctx)
	defer cancel()
	lic, err := e.store.FindByKey(opCtx, key)
	if err != nil {
		return nil, e.mapStoreErr(opCtx, err)
	}
	return lic, nil
}

func (e *Engine) findActiveByEmail(ctx context.Context, email string) (*domain.License, error) {
	opCtx, cancel := e.storeContext(ctx)
	defer cancel()
	lic, err := e.store.FindActiveByEmail(opCtx, email)
	if err != nil {
		return nil, e.mapStoreErr(opCtx, err)
	}
	return lic, nil
}

func (e *Engine) insert(ctx context.Context, lic *domain.License) error {
	opCtx, cancel := e.storeContext(ctx)
	defer cancel()
	if err := e.store.Insert(opCtx, lic); err != nil {
		return e.mapStoreErr(opCtx, err)
	}
	return nil
}

func (e *Engine) updateWhere(ctx context.Context, key string, expect Expectation, set Mutation) error {
	opCtx, cancel := e.storeContext(ctx)
	defer cancel()
	if err := e.store.UpdateWhere(opCtx, key, expect, set); err != nil {
		return e.mapStoreErr(opCtx, err)
	}
	return nil
}

// mapStoreErr passes taxonomy errors through untouched and converts
// timeouts and unclassified store failures to ErrStoreUnavailable.
func (e *Engine) mapStoreErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateKey),
		errors.Is(err, ErrPreconditionFailed),
		errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: store call timed out", ErrStoreUnavailable)
	default:
		e.logger.ErrorContext(ctx, "store operation failed",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
