package storage

import (
	"fmt"
	"strings"

	"report-api/internal/config"
	"report-api/internal/domain"
)

// Store agrupa as persistências de relatórios e pagamentos de um mesmo backend
type Store interface {
	domain.ReportStore
	domain.PaymentStore
}

// StorageType define os tipos de storage disponíveis
type StorageType string

const (
	RedisStorageType  StorageType = "redis"
	MemoryStorageType StorageType = "memory"
)

// StorageConfig contém configurações para criação de storage
type StorageConfig struct {
	Type        StorageType
	RedisConfig *RedisConfig
}

// RedisConfig contém configurações específicas do Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	Database int
}

// StorageFactory cria instâncias de storage seguindo Strategy Pattern
type StorageFactory struct{}

// NewStorageFactory cria uma nova instância da factory
func NewStorageFactory() *StorageFactory {
	return &StorageFactory{}
}

// CreateStorage cria uma instância de storage baseada na configuração
func (f *StorageFactory) CreateStorage(cfg *StorageConfig, logger domain.Logger) (Store, error) {
	if err := f.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case RedisStorageType:
		return f.createRedisStorage(cfg.RedisConfig, logger)
	default:
		return f.createMemoryStorage(logger), nil
	}
}

func (f *StorageFactory) createRedisStorage(cfg *RedisConfig, logger domain.Logger) (Store, error) {
	storage, err := NewRedisStorage(cfg.Host, cfg.Port, cfg.Password, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis storage: %w", err)
	}

	if logger != nil {
		logger.Info("Redis storage created successfully", map[string]interface{}{
			"host":     cfg.Host,
			"port":     cfg.Port,
			"database": cfg.Database,
		})
	}
	return storage, nil
}

func (f *StorageFactory) createMemoryStorage(logger domain.Logger) Store {
	storage := NewMemoryStorage(logger)
	if logger != nil {
		logger.Info("Memory storage created successfully", nil)
	}
	return storage
}

// GetSupportedTypes retorna os tipos de storage suportados
func (f *StorageFactory) GetSupportedTypes() []StorageType {
	return []StorageType{RedisStorageType, MemoryStorageType}
}

// ValidateConfig valida uma configuração de storage
func (f *StorageFactory) ValidateConfig(cfg *StorageConfig) error {
	if cfg == nil {
		return fmt.Errorf("storage config cannot be nil")
	}

	switch cfg.Type {
	case RedisStorageType:
		return validateRedisConfig(cfg.RedisConfig)
	case MemoryStorageType:
		return nil
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func validateRedisConfig(cfg *RedisConfig) error {
	if cfg == nil {
		return fmt.Errorf("Redis config cannot be nil")
	}
	if cfg.Host == "" {
		return fmt.Errorf("Redis host cannot be empty")
	}
	if cfg.Port == "" {
		return fmt.Errorf("Redis port cannot be empty")
	}
	if cfg.Database < 0 || cfg.Database > 15 {
		return fmt.Errorf("Redis database must be between 0 and 15, got: %d", cfg.Database)
	}
	return nil
}

// BuildStorageConfig constrói a configuração de storage a partir do EnvironmentConfig
func BuildStorageConfig(env *config.EnvironmentConfig) *StorageConfig {
	cfg := &StorageConfig{
		Type: StorageType(strings.ToLower(env.ReportStore)),
	}

	if cfg.Type == RedisStorageType {
		cfg.RedisConfig = &RedisConfig{
			Host:     env.RedisHost,
			Port:     env.RedisPort,
			Password: env.RedisPassword,
			Database: env.RedisDB,
		}
	}
	return cfg
}
