package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"licenseapi/internal/license"
	"licenseapi/internal/services"
	"licenseapi/internal/shared/testutil"
	"licenseapi/internal/store"
	"licenseapi/pkg/contracts/domain"
)

// MockNotifier is a testify mock for the notification gateway.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendLicenseKey(ctx context.Context, email, customerName, licenseKey string) error {
	args := m.Called(ctx, email, customerName, licenseKey)
	return args.Error(0)
}

func newLicenseService(t *testing.T, notifier *MockNotifier) services.LicenseService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	engine := license.NewEngine(store.NewMemoryStore(), license.UUIDKeyGenerator{}, license.Options{}, logger)
	return services.NewLicenseService(engine, notifier, nil, logger)
}

func TestLicenseServiceIssueSendsEmail(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendLicenseKey", mock.Anything, "buyer@example.com", "Buyer One", mock.AnythingOfType("string")).
		Return(nil)

	svc := newLicenseService(t, notifier)
	result, err := svc.Issue(context.Background(), "buyer@example.com", "Buyer One")
	require.NoError(t, err)

	assert.True(t, result.EmailSent)
	assert.Empty(t, result.EmailError)
	assert.Equal(t, domain.LicenseStatusActive, result.License.Status)
	notifier.AssertExpectations(t)
}

func TestLicenseServiceIssueSurvivesEmailFailure(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendLicenseKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("provider down"))

	svc := newLicenseService(t, notifier)
	result, err := svc.Issue(context.Background(), "buyer@example.com", "Buyer One")
	require.NoError(t, err)

	// The license exists even though the mail never went out.
	assert.False(t, result.EmailSent)
	assert.Contains(t, result.EmailError, "provider down")

	stored, err := svc.Get(context.Background(), result.License.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, domain.LicenseStatusActive, stored.Status)
}

func TestLicenseServiceIssueDoesNotMailOnEngineError(t *testing.T) {
	notifier := &MockNotifier{}
	svc := newLicenseService(t, notifier)

	_, err := svc.Issue(context.Background(), "not-an-email", "Buyer")
	assert.ErrorIs(t, err, license.ErrInvalidInput)
	notifier.AssertNotCalled(t, "SendLicenseKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLicenseServiceActivateVerifyRevoke(t *testing.T) {
	ctx := context.Background()
	notifier := &MockNotifier{}
	notifier.On("SendLicenseKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := newLicenseService(t, notifier)

	issued, err := svc.Issue(ctx, "buyer@example.com", "Buyer")
	require.NoError(t, err)
	key := issued.License.LicenseKey

	activation, err := svc.Activate(ctx, key, "device-1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeActivated, activation.Outcome)

	verification, err := svc.Verify(ctx, key, "device-1")
	require.NoError(t, err)
	assert.True(t, verification.Valid)

	revocation, err := svc.Revoke(ctx, key)
	require.NoError(t, err)
	assert.True(t, revocation.Success)

	_, err = svc.Verify(ctx, key, "device-1")
	assert.ErrorIs(t, err, license.ErrInactive)
}

func TestLicenseServiceRebindDevice(t *testing.T) {
	ctx := context.Background()
	notifier := &MockNotifier{}
	notifier.On("SendLicenseKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := newLicenseService(t, notifier)

	issued, err := svc.Issue(ctx, "buyer@example.com", "Buyer")
	require.NoError(t, err)
	key := issued.License.LicenseKey
	_, err = svc.Activate(ctx, key, "device-1", nil)
	require.NoError(t, err)

	lic, err := svc.RebindDevice(ctx, key, "device-2")
	require.NoError(t, err)
	assert.Equal(t, "device-2", lic.DeviceID)
}

func TestLicenseServiceRevokeByEmail(t *testing.T) {
	ctx := context.Background()
	notifier := &MockNotifier{}
	notifier.On("SendLicenseKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := newLicenseService(t, notifier)

	_, err := svc.Issue(ctx, "buyer@example.com", "Buyer")
	require.NoError(t, err)

	result, err := svc.RevokeByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Affected)
}
