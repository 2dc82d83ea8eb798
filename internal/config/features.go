package config

// Feature é o conjunto fechado de flags avaliadas a partir da configuração
type Feature int

const (
	FeatureSupabase Feature = iota
	FeaturePayments
	FeatureObservability
)

func (f Feature) String() string {
	switch f {
	case FeatureSupabase:
		return "supabase"
	case FeaturePayments:
		return "payments"
	case FeatureObservability:
		return "observability"
	}
	return "unknown"
}

// AllFeatures lista todas as flags conhecidas
var AllFeatures = []Feature{FeatureSupabase, FeaturePayments, FeatureObservability}

// FeatureFlagEvaluator responde se uma feature está habilitada para a configuração atual
type FeatureFlagEvaluator struct {
	cfg *EnvironmentConfig
}

// NewFeatureFlagEvaluator cria um avaliador sobre uma configuração já validada
func NewFeatureFlagEvaluator(cfg *EnvironmentConfig) *FeatureFlagEvaluator {
	return &FeatureFlagEvaluator{cfg: cfg}
}

// IsEnabled mapeia cada feature para o campo correspondente; desconhecidas são falsas
func (e *FeatureFlagEvaluator) IsEnabled(f Feature) bool {
	if e == nil || e.cfg == nil {
		return false
	}
	switch f {
	case FeatureSupabase:
		return e.cfg.EnableSupabase
	case FeaturePayments:
		return e.cfg.EnablePayments
	case FeatureObservability:
		return e.cfg.EnableObservability
	}
	return false
}

// Snapshot retorna o estado de todas as flags, útil para logs de inicialização
func (e *FeatureFlagEvaluator) Snapshot() map[string]bool {
	snapshot := make(map[string]bool, len(AllFeatures))
	for _, f := range AllFeatures {
		snapshot[f.String()] = e.IsEnabled(f)
	}
	return snapshot
}
