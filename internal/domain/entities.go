package domain

import "time"

// ReportStatus representa o estado de um relatório no ciclo de vida
type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportGenerating ReportStatus = "generating"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
	ReportExpired    ReportStatus = "expired"
)

// IsActive indica se o status ainda participa da varredura de expiração
func (s ReportStatus) IsActive() bool {
	switch s {
	case ReportPending, ReportGenerating, ReportCompleted, ReportFailed:
		return true
	}
	return false
}

// CanTransitionTo define as transições permitidas entre status de relatório.
// expired -> completed é a única transição reversa (restauração administrativa).
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case ReportPending:
		return next == ReportGenerating || next == ReportFailed || next == ReportExpired
	case ReportGenerating:
		return next == ReportCompleted || next == ReportFailed || next == ReportExpired
	case ReportCompleted, ReportFailed:
		return next == ReportExpired
	case ReportExpired:
		return next == ReportCompleted
	}
	return false
}

// Report representa um documento gerado para um usuário
type Report struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id"`
	Title     string       `json:"title"`
	Content   string       `json:"content,omitempty"`
	Status    ReportStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	ExpiresAt time.Time    `json:"expires_at"` // definido uma única vez na criação
}

// PastExpiry indica se expires_at já passou em now (critério da varredura de expiração)
func (r *Report) PastExpiry(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// PaymentStatus representa o estado de um pagamento
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// CanTransitionTo define as transições dirigidas por eventos do provedor de pagamento
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentSucceeded || next == PaymentFailed
	case PaymentSucceeded:
		return next == PaymentRefunded
	}
	return false
}

// Payment é um registro financeiro imutável, exceto pelo status
type Payment struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	ReportID    string        `json:"report_id,omitempty"`
	ProviderRef string        `json:"provider_ref"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// RateLimitResult representa o resultado de uma verificação de rate limit
type RateLimitResult struct {
	Allowed    bool          `json:"allowed"`
	Identifier string        `json:"identifier"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	Reset      time.Duration `json:"reset"`
	RetryAfter time.Duration `json:"retryAfter"`
}

// SweepResult resume uma execução de varredura de retenção
type SweepResult struct {
	Operation string    `json:"operation"`
	Count     int       `json:"count"`
	RanAt     time.Time `json:"ran_at"`
}
