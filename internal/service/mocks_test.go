package service

import (
	"context"
	"io"
	"time"

	"report-api/internal/config"
	"report-api/internal/domain"
	"report-api/internal/logger"

	"github.com/stretchr/testify/mock"
)

// MockReportStore é um mock do ReportStore para testes
type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) Create(ctx context.Context, report *domain.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportStore) Get(ctx context.Context, id string) (*domain.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Report), args.Error(1)
}

func (m *MockReportStore) UpdateStatus(ctx context.Context, id string, from, to domain.ReportStatus, update domain.StatusUpdate) error {
	args := m.Called(ctx, id, from, to, update)
	return args.Error(0)
}

func (m *MockReportStore) SelectActiveExpired(ctx context.Context, now time.Time) ([]*domain.Report, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Report), args.Error(1)
}

func (m *MockReportStore) MarkExpired(ctx context.Context, ids []string, at time.Time) (int, error) {
	args := m.Called(ctx, ids, at)
	return args.Int(0), args.Error(1)
}

func (m *MockReportStore) SelectExpiredOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Report, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Report), args.Error(1)
}

func (m *MockReportStore) DeleteExpired(ctx context.Context, ids []string) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}

func (m *MockReportStore) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockReportStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockMetrics é um mock do MetricsRecorder para testes
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RateLimitDecision(allowed bool)            { m.Called(allowed) }
func (m *MockMetrics) RateLimitBuckets(count int)                { m.Called(count) }
func (m *MockMetrics) RetentionSweep(operation string, count int) { m.Called(operation, count) }
func (m *MockMetrics) RetentionSweepFailed(operation string)     { m.Called(operation) }
func (m *MockMetrics) PaymentTransition(status domain.PaymentStatus) {
	m.Called(status)
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type staticFeatures map[config.Feature]bool

func (f staticFeatures) IsEnabled(feature config.Feature) bool { return f[feature] }

func newTestLogger() domain.Logger {
	return logger.NewLoggerWithOutput("error", "text", io.Discard)
}

// stubGenerator devolve conteúdo ou erro fixos e registra as chamadas
type stubGenerator struct {
	content string
	err     error
	calls   int
}

func (g *stubGenerator) Generate(ctx context.Context, report *domain.Report) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.content, nil
}
