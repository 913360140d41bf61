package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseapi/internal/license"
	"licenseapi/internal/shared/testutil"
	"licenseapi/internal/store"
	"licenseapi/pkg/contracts/domain"
)

func TestMemoryStoreInsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	lic := testutil.PendingLicense()
	require.NoError(t, s.Insert(ctx, lic))

	found, err := s.FindByKey(ctx, lic.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, lic.Email, found.Email)

	// The store hands out copies; mutating a result must not leak back.
	found.Status = domain.LicenseStatusRevoked
	again, err := s.FindByKey(ctx, lic.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, domain.LicenseStatusPending, again.Status)

	assert.ErrorIs(t, s.Insert(ctx, lic), license.ErrDuplicateKey)

	_, err = s.FindByKey(ctx, testutil.ActiveKey)
	assert.ErrorIs(t, err, license.ErrNotFound)
}

func TestMemoryStoreFindActiveByEmail(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	revoked := testutil.RevokedLicense()
	require.NoError(t, s.Insert(ctx, revoked))

	_, err := s.FindActiveByEmail(ctx, revoked.Email)
	assert.ErrorIs(t, err, license.ErrNotFound)

	pending := testutil.PendingLicense()
	pending.Email = revoked.Email
	require.NoError(t, s.Insert(ctx, pending))

	found, err := s.FindActiveByEmail(ctx, revoked.Email)
	require.NoError(t, err)
	assert.Equal(t, pending.LicenseKey, found.LicenseKey)
}

func TestMemoryStoreUpdateWhere(t *testing.T) {
	ctx := context.Background()

	t.Run("expectation mismatch leaves the record untouched", func(t *testing.T) {
		s := store.NewMemoryStore()
		lic := testutil.ActiveLicense("device-1")
		require.NoError(t, s.Insert(ctx, lic))

		err := s.UpdateWhere(ctx, lic.LicenseKey,
			license.Expectation{DeviceID: license.StringPtr("device-2")},
			license.Mutation{Status: license.StatusPtr(domain.LicenseStatusRevoked)})
		assert.ErrorIs(t, err, license.ErrPreconditionFailed)

		stored, err := s.FindByKey(ctx, lic.LicenseKey)
		require.NoError(t, err)
		assert.Equal(t, domain.LicenseStatusActive, stored.Status)
	})

	t.Run("not-status guard", func(t *testing.T) {
		s := store.NewMemoryStore()
		lic := testutil.RevokedLicense()
		require.NoError(t, s.Insert(ctx, lic))

		err := s.UpdateWhere(ctx, lic.LicenseKey,
			license.Expectation{NotStatus: license.StatusPtr(domain.LicenseStatusRevoked)},
			license.Mutation{Status: license.StatusPtr(domain.LicenseStatusActive)})
		assert.ErrorIs(t, err, license.ErrPreconditionFailed)
	})

	t.Run("matching expectation applies the mutation", func(t *testing.T) {
		s := store.NewMemoryStore()
		lic := testutil.PendingLicense()
		require.NoError(t, s.Insert(ctx, lic))

		now := time.Now().UTC()
		err := s.UpdateWhere(ctx, lic.LicenseKey,
			license.Expectation{DeviceID: license.StringPtr("")},
			license.Mutation{
				Status:      license.StatusPtr(domain.LicenseStatusActive),
				DeviceID:    license.StringPtr("device-9"),
				ActivatedAt: license.TimePtr(now),
			})
		require.NoError(t, err)

		stored, err := s.FindByKey(ctx, lic.LicenseKey)
		require.NoError(t, err)
		assert.Equal(t, domain.LicenseStatusActive, stored.Status)
		assert.Equal(t, "device-9", stored.DeviceID)
		require.NotNil(t, stored.ActivatedAt)
		assert.Equal(t, now, *stored.ActivatedAt)
	})

	t.Run("unknown key", func(t *testing.T) {
		s := store.NewMemoryStore()
		err := s.UpdateWhere(ctx, testutil.PendingKey, license.Expectation{}, license.Mutation{})
		assert.ErrorIs(t, err, license.ErrNotFound)
	})
}

// TestMemoryStoreConcurrentFirstActivation races many binders for the same
// unbound license; exactly one conditional update may win.
func TestMemoryStoreConcurrentFirstActivation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	lic := testutil.PendingLicense()
	require.NoError(t, s.Insert(ctx, lic))

	const racers = 32
	var wg sync.WaitGroup
	wins := make(chan string, racers)
	for i := 0; i < racers; i++ {
		deviceID := string(rune('a'+i%26)) + "-device"
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := s.UpdateWhere(ctx, lic.LicenseKey,
				license.Expectation{
					DeviceID:  license.StringPtr(""),
					NotStatus: license.StatusPtr(domain.LicenseStatusRevoked),
				},
				license.Mutation{
					Status:   license.StatusPtr(domain.LicenseStatusActive),
					DeviceID: license.StringPtr(id),
				})
			if err == nil {
				wins <- id
			}
		}(deviceID)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1)

	stored, err := s.FindByKey(ctx, lic.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.DeviceID)
}

func TestMemoryStoreRevokeAllByEmail(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	active := testutil.ActiveLicense("device-1")
	pending := testutil.PendingLicense()
	pending.Email = active.Email
	other := testutil.RevokedLicense()
	require.NoError(t, s.Insert(ctx, active))
	require.NoError(t, s.Insert(ctx, pending))
	require.NoError(t, s.Insert(ctx, other))

	at := time.Now().UTC()
	affected, err := s.RevokeAllByEmail(ctx, active.Email, at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	for _, key := range []string{active.LicenseKey, pending.LicenseKey} {
		stored, err := s.FindByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.LicenseStatusRevoked, stored.Status)
		require.NotNil(t, stored.RevokedAt)
		assert.Equal(t, at, *stored.RevokedAt)
	}

	// Re-running finds nothing left to revoke.
	affected, err = s.RevokeAllByEmail(ctx, active.Email, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, affected)
}
