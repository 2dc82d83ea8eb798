package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"report-api/internal/domain"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// WebhookVerifier adapta a verificação de webhooks do SDK da Stripe.
// O SDK confere o header Stripe-Signature (HMAC, múltiplas v1) e decodifica o evento;
// a janela de tolerância é checada aqui contra o relógio injetado.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
	clock     domain.Clock
}

// NewWebhookVerifier cria um verificador com o segredo e a tolerância de timestamp
func NewWebhookVerifier(secret string, tolerance time.Duration, clock domain.Clock) *WebhookVerifier {
	return &WebhookVerifier{
		secret:    secret,
		tolerance: tolerance,
		clock:     clock,
	}
}

// ConstructEvent valida a assinatura e retorna o evento decodificado.
// Assinatura ausente, inválida ou fora da tolerância resulta em domain.ErrInvalidSignature;
// corpo que não é um evento resulta em domain.ErrInvalidInput.
func (v *WebhookVerifier) ConstructEvent(payload []byte, header string) (*ProviderEvent, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", domain.ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		IgnoreTolerance:          true,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", domain.ErrInvalidInput, err)
	}

	if err := v.checkTolerance(header); err != nil {
		return nil, err
	}
	return newProviderEvent(event)
}

// SignatureHeader gera um header Stripe-Signature válido para o payload (testes e ferramentas)
func (v *WebhookVerifier) SignatureHeader(payload []byte, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    v.secret,
		Timestamp: at,
	}).Header
}

func (v *WebhookVerifier) checkTolerance(header string) error {
	if v.tolerance <= 0 {
		return nil
	}
	signedAt, ok := signedAt(header)
	if !ok {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, webhook.ErrInvalidHeader)
	}

	age := v.clock.Now().Sub(signedAt)
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, webhook.ErrTooOld)
	}
	return nil
}

// signedAt lê o t= de um header que o SDK já aceitou
func signedAt(header string) (time.Time, bool) {
	for _, part := range strings.Split(header, ",") {
		value, ok := strings.CutPrefix(strings.TrimSpace(part), "t=")
		if !ok {
			continue
		}
		ts, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// ProviderEvent é o subconjunto do evento da Stripe usado pelo serviço
type ProviderEvent struct {
	ID     string
	Type   string
	object map[string]interface{}
}

func newProviderEvent(event stripe.Event) (*ProviderEvent, error) {
	if event.Type == "" {
		return nil, fmt.Errorf("%w: webhook event type is missing", domain.ErrInvalidInput)
	}

	pe := &ProviderEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		pe.object = event.Data.Object
	}
	return pe, nil
}

// PaymentRef resolve a referência do pagamento: metadata.payment_ref, depois
// o payment_intent do objeto (eventos de charge), depois o próprio id do objeto
func (e *ProviderEvent) PaymentRef() string {
	if metadata, ok := e.object["metadata"].(map[string]interface{}); ok {
		if ref, ok := metadata["payment_ref"].(string); ok && ref != "" {
			return ref
		}
	}

	switch intent := e.object["payment_intent"].(type) {
	case string:
		if intent != "" {
			return intent
		}
	case map[string]interface{}:
		// payment_intent expandido
		if id, ok := intent["id"].(string); ok && id != "" {
			return id
		}
	}

	id, _ := e.object["id"].(string)
	return id
}
