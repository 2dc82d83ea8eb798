package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Loader carrega e mantém em cache a configuração validada.
// É uma instância explícita criada em main e repassada por injeção de dependência.
type Loader struct {
	mu      sync.Mutex
	cached  *EnvironmentConfig
	envFile string
	lookup  func(key string) (string, bool)
}

// LoaderOption customiza o Loader
type LoaderOption func(*Loader)

// WithEnvFile define o arquivo .env lido antes das variáveis do processo
func WithEnvFile(path string) LoaderOption {
	return func(l *Loader) { l.envFile = path }
}

// WithLookup substitui os.LookupEnv, usado para injetar valores em testes
func WithLookup(lookup func(key string) (string, bool)) LoaderOption {
	return func(l *Loader) { l.lookup = lookup }
}

// WithValues injeta um mapa fixo no lugar do ambiente do processo
func WithValues(values map[string]string) LoaderOption {
	return WithLookup(func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})
}

// NewLoader cria uma nova instância do Loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		envFile: ".env",
		lookup:  os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load retorna a configuração em cache ou valida a partir das fontes atuais
func (l *Loader) Load() (*EnvironmentConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached, nil
	}

	values, err := l.collect()
	if err != nil {
		return nil, err
	}

	cfg, err := New(values)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	l.cached = cfg
	return cfg, nil
}

// Reload descarta o cache e valida novamente
func (l *Loader) Reload() (*EnvironmentConfig, error) {
	l.Reset()
	return l.Load()
}

// Reset descarta o cache; o próximo Load revalida.
// Existe para isolamento entre testes que simulam uma nova implantação.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

// collect monta o conjunto de valores: arquivo .env primeiro, variáveis do processo por cima
func (l *Loader) collect() (map[string]string, error) {
	values := make(map[string]string)

	fileValues, err := l.readEnvFile()
	if err != nil {
		return nil, err
	}
	for k, v := range fileValues {
		values[k] = v
	}

	for _, key := range KnownKeys {
		if v, ok := l.lookup(key); ok && v != "" {
			values[key] = v
		}
	}

	strict, err := parseBool(KeyConfigStrict, strings.TrimSpace(valueOr(values, KeyConfigStrict, "false")))
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}
	if strict {
		if unknown := unknownKeys(fileValues); len(unknown) > 0 {
			return nil, fmt.Errorf("failed to load environment config: %w", &ValidationError{
				Rule:    RuleStrict,
				Message: fmt.Sprintf("unknown configuration keys in %s: %s", l.envFile, strings.Join(unknown, ", ")),
			})
		}
	}

	return values, nil
}

// readEnvFile lê o .env se existir; ausência não é erro
func (l *Loader) readEnvFile() (map[string]string, error) {
	if l.envFile == "" {
		return nil, nil
	}
	if _, err := os.Stat(l.envFile); os.IsNotExist(err) {
		return nil, nil
	}

	fileValues, err := godotenv.Read(l.envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", l.envFile, err)
	}
	return fileValues, nil
}

func valueOr(values map[string]string, key, def string) string {
	if v, ok := values[key]; ok && v != "" {
		return v
	}
	return def
}
