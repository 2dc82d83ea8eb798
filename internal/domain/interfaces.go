package domain

import (
	"context"
	"time"
)

// ReportStore define a interface para persistência de relatórios
// Implementa o Strategy Pattern (memória ou Redis)
type ReportStore interface {
	// Create persiste um novo relatório
	Create(ctx context.Context, report *Report) error

	// Get recupera um relatório pelo ID, retornando ErrReportNotFound se não existir
	Get(ctx context.Context, id string) (*Report, error)

	// UpdateStatus troca atomicamente o status de from para to (com conteúdo/erro opcionais).
	// Se o status gravado não for mais from, nada é alterado e o erro envolve ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, from, to ReportStatus, update StatusUpdate) error

	// SelectActiveExpired lista relatórios em estado ativo cujo expires_at é anterior a now
	SelectActiveExpired(ctx context.Context, now time.Time) ([]*Report, error)

	// MarkExpired marca em lote, atomicamente, os relatórios ainda ativos como expired.
	// at é gravado como updated_at. Retorna quantos registros foram de fato alterados.
	MarkExpired(ctx context.Context, ids []string, at time.Time) (int, error)

	// SelectExpiredOlderThan lista relatórios expired cujo expires_at é anterior ao cutoff
	SelectExpiredOlderThan(ctx context.Context, cutoff time.Time) ([]*Report, error)

	// DeleteExpired remove em lote, atomicamente, os relatórios ainda expired.
	// Retorna quantos registros foram removidos.
	DeleteExpired(ctx context.Context, ids []string) (int, error)

	// Health verifica se o storage está saudável
	Health(ctx context.Context) error

	// Close fecha a conexão com o storage
	Close() error
}

// StatusUpdate carrega os campos opcionais gravados junto com uma transição
type StatusUpdate struct {
	Content string
	Error   string
	At      time.Time
}

// PaymentStore define a persistência de pagamentos.
// Não existe remoção: pagamentos são registros de auditoria.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	GetPaymentByProviderRef(ctx context.Context, ref string) (*Payment, error)
	// UpdatePaymentStatus troca atomicamente o status de from para to; status divergente
	// resulta em erro envolvendo ErrInvalidTransition
	UpdatePaymentStatus(ctx context.Context, id string, from, to PaymentStatus, at time.Time) error
}

// ReportService define o ciclo de vida e a retenção dos relatórios
type ReportService interface {
	CreateReport(ctx context.Context, ownerID, title string) (*Report, error)
	GetReport(ctx context.Context, ownerID, id string) (*Report, error)
	StartGeneration(ctx context.Context, id string) (*Report, error)
	CompleteReport(ctx context.Context, id, content string) (*Report, error)
	FailReport(ctx context.Context, id, reason string) (*Report, error)
	RestoreReport(ctx context.Context, id string) (*Report, error)

	// GenerateReport conduz pending -> generating -> completed|failed usando o ReportGenerator
	GenerateReport(ctx context.Context, ownerID, id string) (*Report, error)

	// ExpireOldReports marca como expired todo relatório ativo com expires_at vencido
	ExpireOldReports(ctx context.Context) (*SweepResult, error)

	// DeleteExpiredReports remove definitivamente relatórios expired além da janela de carência
	DeleteExpiredReports(ctx context.Context) (*SweepResult, error)
}

// ReportGenerator produz o conteúdo de um relatório (serviço externo de LLM)
type ReportGenerator interface {
	Generate(ctx context.Context, report *Report) (string, error)
}

// PaymentService define o ciclo de vida dos pagamentos
type PaymentService interface {
	CreatePayment(ctx context.Context, userID, reportID string) (*Payment, error)
	GetPayment(ctx context.Context, userID, id string) (*Payment, error)
	ApplyProviderEvent(ctx context.Context, providerRef, eventType string) (*Payment, error)

	// HandleWebhook verifica a assinatura do provedor e aplica o evento recebido.
	// Eventos de tipos não tratados retornam (nil, nil).
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*Payment, error)
}

// RateLimiter decide a admissão de uma requisição para um identificador
type RateLimiter interface {
	Allow(identifier string) *RateLimitResult
}

// MetricsRecorder registra métricas operacionais.
// A implementação no-op evita checagens de nil no caminho quente.
type MetricsRecorder interface {
	RateLimitDecision(allowed bool)
	RateLimitBuckets(count int)
	RetentionSweep(operation string, count int)
	RetentionSweepFailed(operation string)
	PaymentTransition(status PaymentStatus)
}

// Clock abstrai o relógio para testes determinísticos
type Clock interface {
	Now() time.Time
}

// Logger define a interface para logging estruturado
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
	WithContext(ctx context.Context) Logger
}
