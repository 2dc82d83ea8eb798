// Package generator contém os adaptadores que produzem o conteúdo dos relatórios.
// O serviço de geração (LLM) é externo e opaco: recebe id e título, devolve o documento.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"report-api/internal/config"
	"report-api/internal/domain"
)

// maxResponseBytes limita o corpo lido do serviço de geração
const maxResponseBytes = 1 << 20

// New escolhe o gerador pela configuração: HTTP quando REPORT_GENERATOR_URL
// está definida, senão o gerador local de esboço
func New(cfg *config.EnvironmentConfig, logger domain.Logger) domain.ReportGenerator {
	if cfg.GeneratorURL == "" {
		return OutlineGenerator{}
	}
	return NewHTTPGenerator(cfg.GeneratorURL, cfg.GeneratorTimeout(), logger)
}

// HTTPGenerator chama o serviço externo de geração.
// Uma única tentativa por chamada; o prazo vem do contexto e do timeout do cliente.
type HTTPGenerator struct {
	endpoint string
	client   *http.Client
	logger   domain.Logger
}

type generateRequest struct {
	ReportID string `json:"report_id"`
	Title    string `json:"title"`
}

type generateResponse struct {
	Content string `json:"content"`
}

// NewHTTPGenerator cria o adaptador para o endpoint informado
func NewHTTPGenerator(endpoint string, timeout time.Duration, logger domain.Logger) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Generate envia o relatório e retorna o conteúdo gerado
func (g *HTTPGenerator) Generate(ctx context.Context, report *domain.Report) (string, error) {
	body, err := json.Marshal(generateRequest{ReportID: report.ID, Title: report.Title})
	if err != nil {
		return "", fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("report generator unreachable: %w", err)
	}
	defer resp.Body.Close()

	g.logger.WithContext(ctx).Debug("Report generator responded", map[string]interface{}{
		"report_id":  report.ID,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("report generator returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("malformed generator response: %w", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("report generator returned empty content")
	}
	return out.Content, nil
}

// OutlineGenerator produz um esboço local a partir do título.
// Usado em dev/test quando não há serviço de geração configurado.
type OutlineGenerator struct{}

// Generate monta o documento sem chamadas externas
func (OutlineGenerator) Generate(ctx context.Context, report *domain.Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("# %s\n\n## Summary\n\n## Findings\n\n## Next steps\n", report.Title), nil
}
