package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Preço fixo de um relatório; não é configurável
const (
	ReportPriceCents int64 = 999
	ReportCurrency         = "usd"
)

// Mode define o modo de implantação
type Mode string

const (
	ModeDev        Mode = "dev"
	ModeTest       Mode = "test"
	ModeProduction Mode = "production"
)

// Nomes das variáveis de ambiente reconhecidas
const (
	KeyEnvironmentMode          = "ENVIRONMENT_MODE"
	KeyEnableSupabase           = "ENABLE_SUPABASE"
	KeySupabaseURL              = "SUPABASE_URL"
	KeySupabaseAnonKey          = "SUPABASE_ANON_KEY"
	KeySupabaseServiceRoleKey   = "SUPABASE_SERVICE_ROLE_KEY"
	KeyEnablePayments           = "ENABLE_PAYMENTS"
	KeyStripePublishableKey     = "STRIPE_PUBLISHABLE_KEY"
	KeyStripeSecretKey          = "STRIPE_SECRET_KEY"
	KeyStripeWebhookSecret      = "STRIPE_WEBHOOK_SECRET"
	KeyEnableObservability      = "ENABLE_OBSERVABILITY"
	KeyLogLevel                 = "LOG_LEVEL"
	KeyLogFormat                = "LOG_FORMAT"
	KeyServerPort               = "SERVER_PORT"
	KeyGinMode                  = "GIN_MODE"
	KeyRateLimitPerMinute       = "RATE_LIMIT_PER_MINUTE"
	KeyRateLimitCleanupInterval = "RATE_LIMIT_CLEANUP_INTERVAL"
	KeyCronSecret               = "CRON_SECRET"
	KeyAuthJWTSecret            = "AUTH_JWT_SECRET"
	KeyReportStore              = "REPORT_STORE"
	KeyRedisHost                = "REDIS_HOST"
	KeyRedisPort                = "REDIS_PORT"
	KeyRedisPassword            = "REDIS_PASSWORD"
	KeyRedisDB                  = "REDIS_DB"
	KeyWebhookTolerance         = "WEBHOOK_TOLERANCE_SECONDS"
	KeyGeneratorURL             = "REPORT_GENERATOR_URL"
	KeyGeneratorTimeout         = "REPORT_GENERATOR_TIMEOUT_SECONDS"
	KeyConfigStrict             = "CONFIG_STRICT"
)

// KnownKeys lista todas as variáveis aceitas; em modo estrito qualquer outra é rejeitada
var KnownKeys = []string{
	KeyEnvironmentMode, KeyEnableSupabase, KeySupabaseURL, KeySupabaseAnonKey,
	KeySupabaseServiceRoleKey, KeyEnablePayments, KeyStripePublishableKey,
	KeyStripeSecretKey, KeyStripeWebhookSecret, KeyEnableObservability,
	KeyLogLevel, KeyLogFormat, KeyServerPort, KeyGinMode, KeyRateLimitPerMinute,
	KeyRateLimitCleanupInterval, KeyCronSecret, KeyAuthJWTSecret, KeyReportStore,
	KeyRedisHost, KeyRedisPort, KeyRedisPassword, KeyRedisDB, KeyWebhookTolerance,
	KeyGeneratorURL, KeyGeneratorTimeout, KeyConfigStrict,
}

// Regras de validação, na ordem em que são avaliadas
const (
	RuleCoercion       = "coercion"
	RuleStrict         = "strict"
	RuleSupabaseCreds  = "supabase_credentials"
	RulePaymentCreds   = "payment_credentials"
	RuleProductionMode = "production_mode"
	RuleDevMode        = "dev_mode"
	RuleTestMode       = "test_mode"
)

// ValidationError é o único tipo de erro de configuração.
// Message é parte do contrato: operadores e testes buscam substrings nela.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// EnvironmentConfig representa a configuração validada do processo.
// Deve ser tratada como somente leitura após a construção.
type EnvironmentConfig struct {
	Mode Mode

	// Storage (Supabase)
	EnableSupabase         bool
	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string

	// Payments (Stripe)
	EnablePayments       bool
	StripePublishableKey string
	StripeSecretKey      string
	StripeWebhookSecret  string

	// Observability
	EnableObservability bool
	LogLevel            string
	LogFormat           string

	// Server
	ServerPort string
	GinMode    string

	// Rate limiting
	RateLimitPerMinute       int
	RateLimitCleanupInterval int // em segundos

	// Auth
	CronSecret    string
	AuthJWTSecret string

	// Report store
	ReportStore   string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	WebhookToleranceSeconds int

	// Geração de relatórios (serviço externo; vazio usa o gerador local)
	GeneratorURL            string
	GeneratorTimeoutSeconds int
}

// New valida um conjunto de pares chave/valor e constrói a configuração.
// A validação é tudo-ou-nada e para na primeira regra violada.
func New(values map[string]string) (*EnvironmentConfig, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
		return def
	}

	// 1. Coerção de tipos e faixas
	cfg := &EnvironmentConfig{
		SupabaseURL:            get(KeySupabaseURL, ""),
		SupabaseAnonKey:        get(KeySupabaseAnonKey, ""),
		SupabaseServiceRoleKey: get(KeySupabaseServiceRoleKey, ""),
		StripePublishableKey:   get(KeyStripePublishableKey, ""),
		StripeSecretKey:        get(KeyStripeSecretKey, ""),
		StripeWebhookSecret:    get(KeyStripeWebhookSecret, ""),
		LogFormat:              strings.ToLower(get(KeyLogFormat, "json")),
		ServerPort:             get(KeyServerPort, "8080"),
		GinMode:                strings.ToLower(get(KeyGinMode, "debug")),
		CronSecret:             get(KeyCronSecret, ""),
		AuthJWTSecret:          get(KeyAuthJWTSecret, ""),
		ReportStore:            strings.ToLower(get(KeyReportStore, "memory")),
		RedisHost:              get(KeyRedisHost, "localhost"),
		RedisPort:              get(KeyRedisPort, "6379"),
		RedisPassword:          get(KeyRedisPassword, ""),
		GeneratorURL:           get(KeyGeneratorURL, ""),
	}

	switch mode := Mode(strings.ToLower(get(KeyEnvironmentMode, string(ModeDev)))); mode {
	case ModeDev, ModeTest, ModeProduction:
		cfg.Mode = mode
	default:
		return nil, coercionError("%s must be one of dev, test, production, got: %s", KeyEnvironmentMode, mode)
	}

	var err error
	if cfg.EnableSupabase, err = parseBool(KeyEnableSupabase, get(KeyEnableSupabase, "false")); err != nil {
		return nil, err
	}
	if cfg.EnablePayments, err = parseBool(KeyEnablePayments, get(KeyEnablePayments, "false")); err != nil {
		return nil, err
	}
	if cfg.EnableObservability, err = parseBool(KeyEnableObservability, get(KeyEnableObservability, "false")); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = parsePositiveInt(KeyRateLimitPerMinute, get(KeyRateLimitPerMinute, "100")); err != nil {
		return nil, err
	}
	if cfg.RateLimitCleanupInterval, err = parsePositiveInt(KeyRateLimitCleanupInterval, get(KeyRateLimitCleanupInterval, "60")); err != nil {
		return nil, err
	}
	if cfg.WebhookToleranceSeconds, err = parsePositiveInt(KeyWebhookTolerance, get(KeyWebhookTolerance, "300")); err != nil {
		return nil, err
	}
	if cfg.GeneratorTimeoutSeconds, err = parsePositiveInt(KeyGeneratorTimeout, get(KeyGeneratorTimeout, "60")); err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(get(KeyRedisDB, "0"))
	if err != nil {
		return nil, coercionError("invalid %s value: %v", KeyRedisDB, err)
	}
	if redisDB < 0 || redisDB > 15 {
		return nil, coercionError("%s must be between 0 and 15", KeyRedisDB)
	}
	cfg.RedisDB = redisDB

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, coercionError("%s must be json or text, got: %s", KeyLogFormat, cfg.LogFormat)
	}

	switch cfg.ReportStore {
	case "memory", "redis":
	default:
		return nil, coercionError("%s must be memory or redis, got: %s", KeyReportStore, cfg.ReportStore)
	}

	// 2. Default do nível de log conforme o modo
	level := strings.ToLower(get(KeyLogLevel, ""))
	switch level {
	case "":
		if cfg.Mode == ModeProduction {
			level = "info"
		} else {
			level = "debug"
		}
	case "debug", "info", "warn", "warning", "error":
	default:
		return nil, coercionError("%s must be one of debug, info, warn, error, got: %s", KeyLogLevel, level)
	}
	cfg.LogLevel = level

	// 3. Regras entre campos, na ordem
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate aplica as regras entre campos; a primeira violada é retornada
func (c *EnvironmentConfig) validate() error {
	if c.EnableSupabase && (c.SupabaseURL == "" || c.SupabaseAnonKey == "") {
		return &ValidationError{
			Rule:    RuleSupabaseCreds,
			Message: "SUPABASE_URL and SUPABASE_ANON_KEY are required when ENABLE_SUPABASE=true",
		}
	}

	if c.EnablePayments {
		var missing []string
		if c.StripePublishableKey == "" {
			missing = append(missing, KeyStripePublishableKey)
		}
		if c.StripeSecretKey == "" {
			missing = append(missing, KeyStripeSecretKey)
		}
		if c.StripeWebhookSecret == "" {
			missing = append(missing, KeyStripeWebhookSecret)
		}
		if len(missing) > 0 {
			return &ValidationError{
				Rule: RulePaymentCreds,
				Message: fmt.Sprintf(
					"STRIPE_PUBLISHABLE_KEY, STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required when ENABLE_PAYMENTS=true (missing: %s)",
					strings.Join(missing, ", "),
				),
			}
		}
	}

	switch c.Mode {
	case ModeProduction:
		if !c.EnableSupabase || !c.EnablePayments {
			return &ValidationError{
				Rule:    RuleProductionMode,
				Message: "Production mode requires ENABLE_SUPABASE=true and ENABLE_PAYMENTS=true",
			}
		}
	case ModeDev:
		if c.EnableSupabase || c.EnablePayments {
			return &ValidationError{
				Rule:    RuleDevMode,
				Message: "Dev mode requires ENABLE_SUPABASE=false and ENABLE_PAYMENTS=false",
			}
		}
	case ModeTest:
		if !c.EnableSupabase || c.EnablePayments {
			return &ValidationError{
				Rule:    RuleTestMode,
				Message: "Test mode requires ENABLE_SUPABASE=true and ENABLE_PAYMENTS=false",
			}
		}
	}

	return nil
}

// RefillRate retorna tokens por segundo para a política "N por minuto"
func (c *EnvironmentConfig) RefillRate() float64 {
	return float64(c.RateLimitPerMinute) / 60
}

// CleanupInterval retorna o intervalo da varredura de buckets ociosos
func (c *EnvironmentConfig) CleanupInterval() time.Duration {
	return time.Duration(c.RateLimitCleanupInterval) * time.Second
}

// WebhookTolerance retorna a tolerância de timestamp das assinaturas de webhook
func (c *EnvironmentConfig) WebhookTolerance() time.Duration {
	return time.Duration(c.WebhookToleranceSeconds) * time.Second
}

// GeneratorTimeout retorna o tempo máximo de uma chamada ao gerador de relatórios
func (c *EnvironmentConfig) GeneratorTimeout() time.Duration {
	return time.Duration(c.GeneratorTimeoutSeconds) * time.Second
}

// RedisAddr retorna host:porta do Redis
func (c *EnvironmentConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// unknownKeys retorna, ordenadas, as chaves que não fazem parte de KnownKeys
func unknownKeys(values map[string]string) []string {
	known := make(map[string]struct{}, len(KnownKeys))
	for _, k := range KnownKeys {
		known[k] = struct{}{}
	}

	var unknown []string
	for k := range values {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func parseBool(key, value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, coercionError("invalid %s value: %s", key, value)
	}
	return parsed, nil
}

func parsePositiveInt(key, value string) (int, error) {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, coercionError("invalid %s value: %v", key, err)
	}
	if parsed <= 0 {
		return 0, coercionError("%s must be greater than 0", key)
	}
	return parsed, nil
}

func coercionError(format string, args ...interface{}) error {
	return &ValidationError{Rule: RuleCoercion, Message: fmt.Sprintf(format, args...)}
}
