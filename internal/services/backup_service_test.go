package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseapi/internal/backup"
	"licenseapi/internal/services"
	"licenseapi/internal/shared/testutil"
	api "licenseapi/pkg/contracts/api/v1"
	"licenseapi/pkg/contracts/domain"
)

func newBackupService(t *testing.T) services.BackupService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return services.NewBackupService(backup.NewMemoryVault(), nil, logger)
}

func TestBackupServiceSaveAndRestore(t *testing.T) {
	ctx := context.Background()
	svc := newBackupService(t)

	payload := api.BackupSavePayload{
		Transactions: json.RawMessage(`[{"id":1},{"id":2}]`),
		FixedCosts:   json.RawMessage(`[{"id":10}]`),
	}
	saved, err := svc.Save(ctx, "User@Example.com", payload)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", saved.Email)
	assert.Equal(t, 2, saved.Stats.Transactions)
	assert.Equal(t, 1, saved.Stats.FixedCosts)
	assert.Zero(t, saved.Stats.Payments)
	assert.False(t, saved.Timestamp.IsZero())

	restored, err := svc.Restore(ctx, "user@example.com")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1},{"id":2}]`, string(restored.Record.Transactions))
	assert.Equal(t, domain.BackupSchemaVersion, restored.Record.Version)
	assert.Equal(t, 2, restored.Stats.Transactions)
}

func TestBackupServiceLastWriteWins(t *testing.T) {
	ctx := context.Background()
	svc := newBackupService(t)

	_, err := svc.Save(ctx, "user@example.com", api.BackupSavePayload{
		Transactions: json.RawMessage(`[{"id":1}]`),
		Payments:     json.RawMessage(`[{"id":5}]`),
	})
	require.NoError(t, err)

	// The second snapshot replaces the first wholesale; omitted sections
	// do not survive from the previous save.
	_, err = svc.Save(ctx, "user@example.com", api.BackupSavePayload{
		Transactions: json.RawMessage(`[{"id":2}]`),
	})
	require.NoError(t, err)

	restored, err := svc.Restore(ctx, "user@example.com")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":2}]`, string(restored.Record.Transactions))
	assert.Empty(t, restored.Record.Payments)
}

func TestBackupServiceRestoreMissing(t *testing.T) {
	svc := newBackupService(t)
	_, err := svc.Restore(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, backup.ErrNotFound)
}
