package transfer

import (
	"testing"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/stretchr/testify/assert"
)

func gateFile(now time.Time) models.File {
	return models.File{
		ID:            "f1",
		UploadStatus:  models.FileCompleted,
		ExpiresAt:     now.Add(24 * time.Hour),
		MaxDownloads:  3,
		DownloadCount: 0,
	}
}

func approvedRequest() models.AccessRequest {
	return models.AccessRequest{RequestID: "r1", FileID: "f1", Status: models.RequestApproved}
}

func TestEvaluate_Allow(t *testing.T) {
	now := time.Now()
	d := Evaluate(gateFile(now), approvedRequest(), now)
	assert.True(t, d.Allowed)
	assert.NoError(t, d.Err())
}

func TestEvaluate_DenyOrder(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		mutate  func(f *models.File, r *models.AccessRequest)
		reason  DenyReason
		wantErr error
	}{
		{
			name:    "expired",
			mutate:  func(f *models.File, r *models.AccessRequest) { f.ExpiresAt = now.Add(-time.Minute) },
			reason:  DenyExpired,
			wantErr: ErrExpired,
		},
		{
			name:    "invalidated",
			mutate:  func(f *models.File, r *models.AccessRequest) { f.IsInvalidated = true },
			reason:  DenyInvalidated,
			wantErr: ErrInvalidated,
		},
		{
			name:    "pending request",
			mutate:  func(f *models.File, r *models.AccessRequest) { r.Status = models.RequestPending },
			reason:  DenyNotApproved,
			wantErr: ErrNotApproved,
		},
		{
			name:    "rejected request",
			mutate:  func(f *models.File, r *models.AccessRequest) { r.Status = models.RequestRejected },
			reason:  DenyNotApproved,
			wantErr: ErrNotApproved,
		},
		{
			name:    "downloads blocked",
			mutate:  func(f *models.File, r *models.AccessRequest) { f.BlocksDownloads = true },
			reason:  DenyDownloadsBlocked,
			wantErr: ErrDownloadsBlocked,
		},
		{
			name:    "limit reached",
			mutate:  func(f *models.File, r *models.AccessRequest) { f.DownloadCount = f.MaxDownloads },
			reason:  DenyLimitReached,
			wantErr: ErrLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := gateFile(now)
			r := approvedRequest()
			tt.mutate(&f, &r)

			d := Evaluate(f, r, now)
			assert.False(t, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
			assert.ErrorIs(t, d.Err(), tt.wantErr)
		})
	}
}

// Expiry overrides everything, including an existing approval, blocked
// downloads and remaining download budget.
func TestEvaluate_ExpiryOverridesAll(t *testing.T) {
	now := time.Now()
	f := gateFile(now)
	f.ExpiresAt = now.Add(-time.Hour)
	f.BlocksDownloads = true
	f.DownloadCount = f.MaxDownloads

	d := Evaluate(f, approvedRequest(), now)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyExpired, d.Reason)
}

// Exactly-at-expiry counts as expired.
func TestEvaluate_ExpiryBoundary(t *testing.T) {
	now := time.Now()
	f := gateFile(now)
	f.ExpiresAt = now

	d := Evaluate(f, approvedRequest(), now)
	assert.Equal(t, DenyExpired, d.Reason)
}

// Key release ignores the download counter but honors every other denial.
func TestEvaluateKeyRelease(t *testing.T) {
	now := time.Now()

	exhausted := gateFile(now)
	exhausted.DownloadCount = exhausted.MaxDownloads
	assert.True(t, EvaluateKeyRelease(exhausted, approvedRequest(), now).Allowed)

	expired := gateFile(now)
	expired.ExpiresAt = now.Add(-time.Hour)
	assert.Equal(t, DenyExpired, EvaluateKeyRelease(expired, approvedRequest(), now).Reason)

	invalidated := gateFile(now)
	invalidated.IsInvalidated = true
	assert.Equal(t, DenyInvalidated, EvaluateKeyRelease(invalidated, approvedRequest(), now).Reason)

	blocked := gateFile(now)
	blocked.BlocksDownloads = true
	assert.Equal(t, DenyDownloadsBlocked, EvaluateKeyRelease(blocked, approvedRequest(), now).Reason)

	pending := approvedRequest()
	pending.Status = models.RequestPending
	assert.Equal(t, DenyNotApproved, EvaluateKeyRelease(gateFile(now), pending, now).Reason)
}

// Invalidation denies release without touching the request's stored status.
func TestEvaluate_InvalidationLeavesRequestIntact(t *testing.T) {
	now := time.Now()
	f := gateFile(now)
	f.IsInvalidated = true
	r := approvedRequest()

	d := Evaluate(f, r, now)
	assert.Equal(t, DenyInvalidated, d.Reason)
	assert.Equal(t, models.RequestApproved, r.Status)
}
