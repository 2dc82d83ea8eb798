package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"report-api/internal/config"
	"report-api/internal/domain"

	"github.com/google/uuid"
)

// Eventos do provedor de pagamento tratados pelo serviço
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

var eventStatus = map[string]domain.PaymentStatus{
	EventPaymentSucceeded: domain.PaymentSucceeded,
	EventPaymentFailed:    domain.PaymentFailed,
	EventChargeRefunded:   domain.PaymentRefunded,
}

// FeatureGate informa se uma feature está habilitada
type FeatureGate interface {
	IsEnabled(f config.Feature) bool
}

// PaymentService implementa a máquina de estados de pagamentos.
// Pagamentos nunca expiram nem são removidos; só o status muda.
type PaymentService struct {
	store    domain.PaymentStore
	features FeatureGate
	verifier *WebhookVerifier
	clock    domain.Clock
	metrics  domain.MetricsRecorder
	logger   domain.Logger
}

// NewPaymentService cria uma nova instância do serviço
func NewPaymentService(
	store domain.PaymentStore,
	features FeatureGate,
	verifier *WebhookVerifier,
	clock domain.Clock,
	metrics domain.MetricsRecorder,
	logger domain.Logger,
) *PaymentService {
	return &PaymentService{
		store:    store,
		features: features,
		verifier: verifier,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// CreatePayment registra um pagamento pendente com o valor fixo do relatório
func (s *PaymentService) CreatePayment(ctx context.Context, userID, reportID string) (*domain.Payment, error) {
	if !s.features.IsEnabled(config.FeaturePayments) {
		return nil, domain.ErrPaymentsDisabled
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	id := uuid.New()
	payment := &domain.Payment{
		ID:          id.String(),
		UserID:      userID,
		ReportID:    reportID,
		ProviderRef: "pay_" + strings.ReplaceAll(id.String(), "-", ""),
		AmountCents: config.ReportPriceCents,
		Currency:    config.ReportCurrency,
		Status:      domain.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreatePayment(ctx, payment); err != nil {
		s.logger.WithContext(ctx).Error("Failed to create payment", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.metrics.PaymentTransition(domain.PaymentPending)
	s.logger.WithContext(ctx).Info("Payment created", map[string]interface{}{
		"payment_id":   payment.ID,
		"provider_ref": payment.ProviderRef,
		"amount_cents": payment.AmountCents,
	})
	return payment, nil
}

// GetPayment retorna um pagamento do próprio usuário
func (s *PaymentService) GetPayment(ctx context.Context, userID, id string) (*domain.Payment, error) {
	if !s.features.IsEnabled(config.FeaturePayments) {
		return nil, domain.ErrPaymentsDisabled
	}

	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// ApplyProviderEvent aplica a transição correspondente ao evento.
// Reenvio do mesmo evento é no-op.
func (s *PaymentService) ApplyProviderEvent(ctx context.Context, providerRef, eventType string) (*domain.Payment, error) {
	if !s.features.IsEnabled(config.FeaturePayments) {
		return nil, domain.ErrPaymentsDisabled
	}

	next, ok := eventStatus[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEvent, eventType)
	}

	payment, err := s.store.GetPaymentByProviderRef(ctx, providerRef)
	if err != nil {
		return nil, err
	}

	if payment.Status == next {
		return s.duplicateEvent(ctx, payment, eventType), nil
	}

	if !payment.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, payment.Status, next)
	}

	at := s.clock.Now().UTC()
	if err := s.store.UpdatePaymentStatus(ctx, payment.ID, payment.Status, next, at); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			return nil, fmt.Errorf("failed to update payment %s: %w", payment.ID, err)
		}
		// outro evento mudou o pagamento depois da leitura; a reentrega concorrente
		// do mesmo evento continua sendo no-op
		current, getErr := s.store.GetPayment(ctx, payment.ID)
		if getErr == nil && current.Status == next {
			return s.duplicateEvent(ctx, current, eventType), nil
		}
		return nil, err
	}

	s.metrics.PaymentTransition(next)
	s.logger.WithContext(ctx).Info("Payment status changed", map[string]interface{}{
		"payment_id": payment.ID,
		"from":       payment.Status,
		"to":         next,
		"event":      eventType,
	})

	payment.Status = next
	payment.UpdatedAt = at
	return payment, nil
}

func (s *PaymentService) duplicateEvent(ctx context.Context, payment *domain.Payment, eventType string) *domain.Payment {
	s.logger.WithContext(ctx).Debug("Duplicate payment event ignored", map[string]interface{}{
		"payment_id": payment.ID,
		"event":      eventType,
	})
	return payment
}

// HandleWebhook verifica a assinatura e aplica o evento do provedor
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*domain.Payment, error) {
	if !s.features.IsEnabled(config.FeaturePayments) {
		return nil, domain.ErrPaymentsDisabled
	}

	event, err := s.verifier.ConstructEvent(payload, signatureHeader)
	if err != nil {
		s.logger.WithContext(ctx).Warn("Webhook rejected", map[string]interface{}{
			"reason": err.Error(),
		})
		return nil, err
	}

	payment, err := s.ApplyProviderEvent(ctx, event.PaymentRef(), event.Type)
	if errors.Is(err, domain.ErrUnknownEvent) {
		s.logger.WithContext(ctx).Debug("Webhook event ignored", map[string]interface{}{
			"event_id": event.ID,
			"event":    event.Type,
		})
		return nil, nil
	}
	return payment, err
}
