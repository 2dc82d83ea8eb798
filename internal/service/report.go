package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"report-api/internal/domain"

	"github.com/google/uuid"
)

const (
	// ReportExpiryWindow é o tempo de vida de um relatório a partir da criação
	ReportExpiryWindow = 30 * 24 * time.Hour

	// HardDeleteGraceWindow é a carência após a expiração antes da remoção definitiva
	HardDeleteGraceWindow = 90 * 24 * time.Hour

	OperationExpireReports        = "expire_reports"
	OperationDeleteExpiredReports = "delete_expired_reports"

	// RestoreNotePastExpiry acompanha restaurações cujo expires_at já passou
	RestoreNotePastExpiry = "expires_at is in the past; the next expire sweep will expire this report again"
)

// ReportService implementa o ciclo de vida e a retenção de relatórios
type ReportService struct {
	store     domain.ReportStore
	generator domain.ReportGenerator
	clock     domain.Clock
	metrics   domain.MetricsRecorder
	logger    domain.Logger
}

// NewReportService cria uma nova instância do serviço
func NewReportService(
	store domain.ReportStore,
	generator domain.ReportGenerator,
	clock domain.Clock,
	metrics domain.MetricsRecorder,
	logger domain.Logger,
) *ReportService {
	return &ReportService{
		store:     store,
		generator: generator,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateReport registra um novo relatório pendente. expires_at é fixado aqui e nunca recalculado.
func (s *ReportService) CreateReport(ctx context.Context, ownerID, title string) (*domain.Report, error) {
	ownerID = strings.TrimSpace(ownerID)
	title = strings.TrimSpace(title)
	if ownerID == "" || title == "" {
		return nil, fmt.Errorf("%w: owner and title are required", domain.ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	report := &domain.Report{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Status:    domain.ReportPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ReportExpiryWindow),
	}

	if err := s.store.Create(ctx, report); err != nil {
		s.logger.WithContext(ctx).Error("Failed to create report", err, map[string]interface{}{
			"owner_id": ownerID,
		})
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	s.logger.WithContext(ctx).Info("Report created", map[string]interface{}{
		"report_id":  report.ID,
		"owner_id":   ownerID,
		"expires_at": report.ExpiresAt,
	})
	return report, nil
}

// GetReport retorna o relatório do dono. Relatórios expirados ficam ocultos (soft delete).
func (s *ReportService) GetReport(ctx context.Context, ownerID, id string) (*domain.Report, error) {
	report, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if report.OwnerID != ownerID || report.Status == domain.ReportExpired {
		return nil, domain.ErrReportNotFound
	}
	return report, nil
}

// StartGeneration move o relatório de pending para generating
func (s *ReportService) StartGeneration(ctx context.Context, id string) (*domain.Report, error) {
	return s.transition(ctx, id, domain.ReportGenerating, domain.StatusUpdate{})
}

// CompleteReport grava o conteúdo gerado
func (s *ReportService) CompleteReport(ctx context.Context, id, content string) (*domain.Report, error) {
	return s.transition(ctx, id, domain.ReportCompleted, domain.StatusUpdate{Content: content})
}

// FailReport registra a falha da geração
func (s *ReportService) FailReport(ctx context.Context, id, reason string) (*domain.Report, error) {
	return s.transition(ctx, id, domain.ReportFailed, domain.StatusUpdate{Error: reason})
}

// GenerateReport executa a geração de um relatório pendente do dono.
// Falha do gerador não é erro da operação: o relatório termina em failed com o motivo.
func (s *ReportService) GenerateReport(ctx context.Context, ownerID, id string) (*domain.Report, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("report generator not configured")
	}
	if _, err := s.GetReport(ctx, ownerID, id); err != nil {
		return nil, err
	}

	report, err := s.StartGeneration(ctx, id)
	if err != nil {
		return nil, err
	}

	content, genErr := s.generator.Generate(ctx, report)
	if genErr != nil {
		s.logger.WithContext(ctx).Warn("Report generation failed", map[string]interface{}{
			"report_id": id,
			"reason":    genErr.Error(),
		})
		// o contexto da requisição pode ter expirado; a falha ainda precisa ser gravada
		return s.FailReport(context.WithoutCancel(ctx), id, genErr.Error())
	}

	return s.CompleteReport(ctx, id, content)
}

// RestoreReport é a intervenção administrativa expired -> completed.
// Nunca é disparada pelas varreduras automáticas. expires_at não muda: se já passou,
// a próxima varredura expira o relatório de novo.
func (s *ReportService) RestoreReport(ctx context.Context, id string) (*domain.Report, error) {
	report, err := s.transition(ctx, id, domain.ReportCompleted, domain.StatusUpdate{})
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"report_id":  id,
		"expires_at": report.ExpiresAt,
	}
	if report.PastExpiry(s.clock.Now()) {
		fields["note"] = RestoreNotePastExpiry
	}
	s.logger.WithContext(ctx).Warn("Report restored by administrative override", fields)
	return report, nil
}

// ExpireOldReports marca como expired, num único lote, todo relatório ativo vencido.
// Erro do store aborta a varredura inteira e é propagado sem retry local.
func (s *ReportService) ExpireOldReports(ctx context.Context) (*domain.SweepResult, error) {
	now := s.clock.Now().UTC()

	candidates, err := s.store.SelectActiveExpired(ctx, now)
	if err != nil {
		return nil, s.sweepFailed(ctx, OperationExpireReports, "failed to select expired reports", err)
	}
	if len(candidates) == 0 {
		return s.sweepDone(ctx, OperationExpireReports, 0, 0, now), nil
	}

	changed, err := s.store.MarkExpired(ctx, reportIDs(candidates), now)
	if err != nil {
		return nil, s.sweepFailed(ctx, OperationExpireReports, "failed to mark reports expired", err)
	}

	return s.sweepDone(ctx, OperationExpireReports, changed, len(candidates), now), nil
}

// DeleteExpiredReports remove definitivamente os relatórios expired cuja expiração
// passou há mais que a janela de carência
func (s *ReportService) DeleteExpiredReports(ctx context.Context) (*domain.SweepResult, error) {
	now := s.clock.Now().UTC()
	cutoff := now.Add(-HardDeleteGraceWindow)

	candidates, err := s.store.SelectExpiredOlderThan(ctx, cutoff)
	if err != nil {
		return nil, s.sweepFailed(ctx, OperationDeleteExpiredReports, "failed to select reports for deletion", err)
	}
	if len(candidates) == 0 {
		return s.sweepDone(ctx, OperationDeleteExpiredReports, 0, 0, now), nil
	}

	removed, err := s.store.DeleteExpired(ctx, reportIDs(candidates))
	if err != nil {
		return nil, s.sweepFailed(ctx, OperationDeleteExpiredReports, "failed to delete expired reports", err)
	}

	return s.sweepDone(ctx, OperationDeleteExpiredReports, removed, len(candidates), now), nil
}

func (s *ReportService) transition(ctx context.Context, id string, next domain.ReportStatus, update domain.StatusUpdate) (*domain.Report, error) {
	report, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !report.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, report.Status, next)
	}

	update.At = s.clock.Now().UTC()
	if err := s.store.UpdateStatus(ctx, id, report.Status, next, update); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// outra escrita (ex.: varredura de expiração) venceu entre a leitura e a troca
			s.logger.WithContext(ctx).Info("Report status changed concurrently", map[string]interface{}{
				"report_id": id,
				"from":      report.Status,
				"to":        next,
			})
			return nil, err
		}
		return nil, fmt.Errorf("failed to update report %s: %w", id, err)
	}

	s.logger.WithContext(ctx).Debug("Report status changed", map[string]interface{}{
		"report_id": id,
		"from":      report.Status,
		"to":        next,
	})

	report.Status = next
	report.UpdatedAt = update.At
	if update.Content != "" {
		report.Content = update.Content
	}
	if update.Error != "" {
		report.Error = update.Error
	}
	return report, nil
}

func (s *ReportService) sweepFailed(ctx context.Context, operation, msg string, err error) error {
	s.metrics.RetentionSweepFailed(operation)
	s.logger.WithContext(ctx).Error("Retention sweep failed", err, map[string]interface{}{
		"operation": operation,
	})
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *ReportService) sweepDone(ctx context.Context, operation string, count, selected int, ranAt time.Time) *domain.SweepResult {
	s.metrics.RetentionSweep(operation, count)
	s.logger.WithContext(ctx).Info("Retention sweep completed", map[string]interface{}{
		"operation": operation,
		"selected":  selected,
		"count":     count,
	})

	return &domain.SweepResult{
		Operation: operation,
		Count:     count,
		RanAt:     ranAt,
	}
}

func reportIDs(reports []*domain.Report) []string {
	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	return ids
}
