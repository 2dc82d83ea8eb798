package storage

import (
	"context"
	"testing"
	"time"

	"report-api/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newReport(id string, status domain.ReportStatus, expiresAt time.Time) *domain.Report {
	return &domain.Report{
		ID:        id,
		OwnerID:   "user-1",
		Title:     "Report " + id,
		Status:    status,
		CreatedAt: expiresAt.Add(-30 * 24 * time.Hour),
		UpdatedAt: expiresAt.Add(-30 * 24 * time.Hour),
		ExpiresAt: expiresAt,
	}
}

// runStoreSuite executa o mesmo conjunto de comportamentos contra qualquer Store
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Create and Get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		report := newReport("r-1", domain.ReportPending, baseTime)
		require.NoError(t, store.Create(ctx, report))

		got, err := store.Get(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, "r-1", got.ID)
		assert.Equal(t, domain.ReportPending, got.Status)
		assert.True(t, got.ExpiresAt.Equal(baseTime))
	})

	t.Run("Create rejects duplicate id", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, newReport("r-1", domain.ReportPending, baseTime)))
		assert.Error(t, store.Create(ctx, newReport("r-1", domain.ReportPending, baseTime)))
	})

	t.Run("Get missing report", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
	})

	t.Run("UpdateStatus keeps expires_at", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newReport("r-1", domain.ReportGenerating, baseTime)))

		at := baseTime.Add(-time.Hour)
		err := store.UpdateStatus(ctx, "r-1", domain.ReportGenerating, domain.ReportCompleted, domain.StatusUpdate{Content: "body", At: at})
		require.NoError(t, err)

		got, err := store.Get(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ReportCompleted, got.Status)
		assert.Equal(t, "body", got.Content)
		assert.True(t, got.UpdatedAt.Equal(at))
		assert.True(t, got.ExpiresAt.Equal(baseTime))
	})

	t.Run("UpdateStatus missing report", func(t *testing.T) {
		store := newStore(t)

		err := store.UpdateStatus(context.Background(), "missing", domain.ReportPending, domain.ReportFailed, domain.StatusUpdate{})
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
	})

	t.Run("UpdateStatus refuses a stale expected status", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newReport("r-1", domain.ReportGenerating, baseTime)))

		// a varredura expira o relatório entre a leitura e a escrita de quem completa a geração
		changed, err := store.MarkExpired(ctx, []string{"r-1"}, baseTime)
		require.NoError(t, err)
		require.Equal(t, 1, changed)

		err = store.UpdateStatus(ctx, "r-1", domain.ReportGenerating, domain.ReportCompleted, domain.StatusUpdate{Content: "late"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		got, err := store.Get(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ReportExpired, got.Status)
		assert.Empty(t, got.Content)

		expired, err := store.SelectExpiredOlderThan(ctx, baseTime.Add(time.Millisecond))
		require.NoError(t, err)
		require.Len(t, expired, 1)
	})

	t.Run("SelectActiveExpired only returns active reports past expiry", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		now := baseTime

		require.NoError(t, store.Create(ctx, newReport("old-completed", domain.ReportCompleted, now.Add(-2*time.Hour))))
		require.NoError(t, store.Create(ctx, newReport("old-pending", domain.ReportPending, now.Add(-time.Hour))))
		require.NoError(t, store.Create(ctx, newReport("future", domain.ReportCompleted, now.Add(time.Hour))))
		require.NoError(t, store.Create(ctx, newReport("already-expired", domain.ReportExpired, now.Add(-3*time.Hour))))

		reports, err := store.SelectActiveExpired(ctx, now)
		require.NoError(t, err)

		require.Len(t, reports, 2)
		assert.Equal(t, "old-completed", reports[0].ID)
		assert.Equal(t, "old-pending", reports[1].ID)
	})

	t.Run("MarkExpired only changes active reports", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, newReport("a", domain.ReportCompleted, baseTime)))
		require.NoError(t, store.Create(ctx, newReport("b", domain.ReportFailed, baseTime)))
		require.NoError(t, store.Create(ctx, newReport("c", domain.ReportExpired, baseTime)))

		sweptAt := baseTime.Add(time.Hour)
		changed, err := store.MarkExpired(ctx, []string{"a", "b", "c", "missing"}, sweptAt)
		require.NoError(t, err)
		assert.Equal(t, 2, changed)

		changed, err = store.MarkExpired(ctx, []string{"a", "b", "c"}, sweptAt.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, changed)

		for _, id := range []string{"a", "b", "c"} {
			got, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, domain.ReportExpired, got.Status, id)
			assert.True(t, got.ExpiresAt.Equal(baseTime), id)
		}

		for _, id := range []string{"a", "b"} {
			got, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.True(t, got.UpdatedAt.Equal(sweptAt), id)
		}
	})

	t.Run("MarkExpired with no ids", func(t *testing.T) {
		store := newStore(t)

		changed, err := store.MarkExpired(context.Background(), nil, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 0, changed)
	})

	t.Run("SelectExpiredOlderThan and DeleteExpired", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		cutoff := baseTime.Add(-90 * 24 * time.Hour)

		require.NoError(t, store.Create(ctx, newReport("past-grace", domain.ReportExpired, baseTime.Add(-91*24*time.Hour))))
		require.NoError(t, store.Create(ctx, newReport("within-grace", domain.ReportExpired, baseTime.Add(-89*24*time.Hour))))
		require.NoError(t, store.Create(ctx, newReport("old-active", domain.ReportCompleted, baseTime.Add(-100*24*time.Hour))))

		reports, err := store.SelectExpiredOlderThan(ctx, cutoff)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, "past-grace", reports[0].ID)

		removed, err := store.DeleteExpired(ctx, []string{"past-grace", "old-active"})
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = store.Get(ctx, "past-grace")
		assert.ErrorIs(t, err, domain.ErrReportNotFound)

		got, err := store.Get(ctx, "old-active")
		require.NoError(t, err)
		assert.Equal(t, domain.ReportCompleted, got.Status)

		removed, err = store.DeleteExpired(ctx, []string{"past-grace"})
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
	})

	t.Run("Restore moves report back to the active index", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newReport("r-1", domain.ReportExpired, baseTime.Add(-time.Hour))))

		require.NoError(t, store.UpdateStatus(ctx, "r-1", domain.ReportExpired, domain.ReportCompleted, domain.StatusUpdate{At: baseTime}))

		expired, err := store.SelectExpiredOlderThan(ctx, baseTime)
		require.NoError(t, err)
		assert.Empty(t, expired)

		active, err := store.SelectActiveExpired(ctx, baseTime)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "r-1", active[0].ID)
	})

	t.Run("Payments", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		payment := &domain.Payment{
			ID:          "p-1",
			UserID:      "user-1",
			ProviderRef: "pi_123",
			AmountCents: 999,
			Currency:    "usd",
			Status:      domain.PaymentPending,
			CreatedAt:   baseTime,
			UpdatedAt:   baseTime,
		}
		require.NoError(t, store.CreatePayment(ctx, payment))
		assert.Error(t, store.CreatePayment(ctx, payment))

		got, err := store.GetPaymentByProviderRef(ctx, "pi_123")
		require.NoError(t, err)
		assert.Equal(t, "p-1", got.ID)
		assert.Equal(t, int64(999), got.AmountCents)

		later := baseTime.Add(time.Minute)
		require.NoError(t, store.UpdatePaymentStatus(ctx, "p-1", domain.PaymentPending, domain.PaymentSucceeded, later))

		got, err = store.GetPayment(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentSucceeded, got.Status)
		assert.True(t, got.UpdatedAt.Equal(later))

		// leitura antiga (pending) não pode sobrescrever succeeded
		err = store.UpdatePaymentStatus(ctx, "p-1", domain.PaymentPending, domain.PaymentFailed, later)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		got, err = store.GetPayment(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentSucceeded, got.Status)

		_, err = store.GetPayment(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
		_, err = store.GetPaymentByProviderRef(ctx, "pi_missing")
		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
		assert.ErrorIs(t, store.UpdatePaymentStatus(ctx, "missing", domain.PaymentPending, domain.PaymentFailed, later), domain.ErrPaymentNotFound)
	})

	t.Run("Health", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Health(context.Background()))
	})
}
