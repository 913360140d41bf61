package infrastructure

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics holds the license-domain instruments. Counters surface on
// the Prometheus endpoint through the OTel prometheus reader. A nil
// *BusinessMetrics is valid and records nothing, so tests can run without
// wiring telemetry.
type BusinessMetrics struct {
	licensesIssued metric.Int64Counter
	activations    metric.Int64Counter
	verifications  metric.Int64Counter
	revocations    metric.Int64Counter
	backupSaves    metric.Int64Counter
	backupRestores metric.Int64Counter
	storeErrors    metric.Int64Counter
	notifyFailures metric.Int64Counter
}

// CreateBusinessMetrics creates the license-domain instruments on a meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.licensesIssued, err = meter.Int64Counter("licenses_issued_total",
		metric.WithDescription("Licenses issued, by flow")); err != nil {
		return nil, err
	}
	if m.activations, err = meter.Int64Counter("license_activations_total",
		metric.WithDescription("Activation attempts, by outcome")); err != nil {
		return nil, err
	}
	if m.verifications, err = meter.Int64Counter("license_verifications_total",
		metric.WithDescription("Verification attempts, by result")); err != nil {
		return nil, err
	}
	if m.revocations, err = meter.Int64Counter("license_revocations_total",
		metric.WithDescription("Revocations, single and bulk")); err != nil {
		return nil, err
	}
	if m.backupSaves, err = meter.Int64Counter("backup_saves_total",
		metric.WithDescription("Backup snapshots stored")); err != nil {
		return nil, err
	}
	if m.backupRestores, err = meter.Int64Counter("backup_restores_total",
		metric.WithDescription("Backup snapshots retrieved")); err != nil {
		return nil, err
	}
	if m.storeErrors, err = meter.Int64Counter("license_store_errors_total",
		metric.WithDescription("Store unavailability errors surfaced to callers")); err != nil {
		return nil, err
	}
	if m.notifyFailures, err = meter.Int64Counter("notification_failures_total",
		metric.WithDescription("License emails that failed to send")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordIssued counts an issued license by flow.
func (m *BusinessMetrics) RecordIssued(ctx context.Context, flow string) {
	if m == nil {
		return
	}
	m.licensesIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", flow)))
}

// RecordActivation counts an activation attempt by outcome
// (activated, reactivated, or the rejection reason).
func (m *BusinessMetrics) RecordActivation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.activations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordVerification counts a verification attempt by result.
func (m *BusinessMetrics) RecordVerification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordRevocations counts revocations, n per bulk call.
func (m *BusinessMetrics) RecordRevocations(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.revocations.Add(ctx, n)
}

// RecordBackupSave counts a stored snapshot.
func (m *BusinessMetrics) RecordBackupSave(ctx context.Context) {
	if m == nil {
		return
	}
	m.backupSaves.Add(ctx, 1)
}

// RecordBackupRestore counts a retrieved snapshot.
func (m *BusinessMetrics) RecordBackupRestore(ctx context.Context) {
	if m == nil {
		return
	}
	m.backupRestores.Add(ctx, 1)
}

// RecordStoreError counts a store unavailability surfaced to a caller.
func (m *BusinessMetrics) RecordStoreError(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.storeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordNotifyFailure counts a failed license email.
func (m *BusinessMetrics) RecordNotifyFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.notifyFailures.Add(ctx, 1)
}
