package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config хранит конфигурацию функции и сервера
type Config struct {
	ServerAddress     string        `json:"server_address"`
	ShortenerURL      string        `json:"shortener_url"`
	ShortenerAttempts int           `json:"shortener_attempts"`
	ShortenerBackoff  time.Duration `json:"-"`
	ShortenerTimeout  time.Duration `json:"-"`
	ShutdownTimeout   time.Duration `json:"-"`
	GRPCAddress       string        `json:"grpc_address"`
	LogLevel          string        `json:"log_level"`
}

// rawJSON повторяет Config, но длительности в файле задаются строками вида "200ms".
type rawJSON struct {
	ServerAddress     string `json:"server_address"`
	ShortenerURL      string `json:"shortener_url"`
	ShortenerAttempts int    `json:"shortener_attempts"`
	ShortenerBackoff  string `json:"shortener_backoff"`
	ShortenerTimeout  string `json:"shortener_timeout"`
	ShutdownTimeout   string `json:"shutdown_timeout"`
	GRPCAddress       string `json:"grpc_address"`
	LogLevel          string `json:"log_level"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("SERVER_ADDRESS", "localhost:8080") // Значения по умолчанию
	v.SetDefault("SHORTENER_URL", "https://is.gd/create.php")
	v.SetDefault("SHORTENER_ATTEMPTS", 3)
	v.SetDefault("SHORTENER_BACKOFF", 200*time.Millisecond)
	v.SetDefault("SHORTENER_TIMEOUT", 5*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("GRPC_ADDRESS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()
	return v
}

// NewConfig собирает конфигурацию из значений по умолчанию, JSON-файла, окружения и флагов командной строки
func NewConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// FromEnv собирает конфигурацию без флагов: для запуска в serverless-окружении.
func FromEnv() (*Config, error) {
	return Load(nil)
}

// Load разбирает args как флаги. Приоритет: умолчания < JSON < окружение < флаги.
func Load(args []string) (*Config, error) {
	v := newViper()

	// Читаем .env, если есть (не переопределяет переменные окружения!)
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // Ошибку игнорируем, если файла нет

	// Определяем флаги, но НЕ задаем в них значения по умолчанию
	fs := flag.NewFlagSet("shortener", flag.ContinueOnError)
	serverAddress := fs.String("a", "", "server address")
	shortenerURL := fs.String("u", "", "shortening service endpoint")
	attempts := fs.Int("n", 0, "shortening attempts")
	backoff := fs.Duration("backoff", 0, "base backoff between attempts")
	timeout := fs.Duration("timeout", 0, "timeout of a single shortening attempt")
	grpcAddress := fs.String("g", "", "gRPC health server address")
	logLevel := fs.String("l", "", "log level")
	configPath := fs.String("c", "", "path to JSON config file")
	fs.StringVar(configPath, "config", "", "path to JSON config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerAddress:     v.GetString("SERVER_ADDRESS"),
		ShortenerURL:      v.GetString("SHORTENER_URL"),
		ShortenerAttempts: v.GetInt("SHORTENER_ATTEMPTS"),
		ShortenerBackoff:  v.GetDuration("SHORTENER_BACKOFF"),
		ShortenerTimeout:  v.GetDuration("SHORTENER_TIMEOUT"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
		GRPCAddress:       v.GetString("GRPC_ADDRESS"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}

	// Загружаем JSON-конфигурацию (если указана)
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG")
	}
	if *configPath != "" {
		if err := applyJSON(cfg, v, *configPath); err != nil {
			return nil, err
		}
	}

	// Если флаг передан — он важнее окружения
	if *serverAddress != "" {
		cfg.ServerAddress = *serverAddress
	}
	if *shortenerURL != "" {
		cfg.ShortenerURL = *shortenerURL
	}
	if *attempts != 0 {
		cfg.ShortenerAttempts = *attempts
	}
	if *backoff != 0 {
		cfg.ShortenerBackoff = *backoff
	}
	if *timeout != 0 {
		cfg.ShortenerTimeout = *timeout
	}
	if *grpcAddress != "" {
		cfg.GRPCAddress = *grpcAddress
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Проверка корректности конфигурации
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}
	return cfg, nil
}

// applyJSON заполняет поля из файла, если соответствующая переменная окружения не задана.
func applyJSON(cfg *Config, v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("не удалось прочитать JSON-файл конфигурации %q: %w", path, err)
	}
	var raw rawJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ошибка разбора JSON-файла конфигурации: %w", err)
	}

	fromFile := func(env, val string, target *string) {
		if val != "" && !v.InConfig(env) && os.Getenv(env) == "" {
			*target = val
		}
	}
	fromFile("SERVER_ADDRESS", raw.ServerAddress, &cfg.ServerAddress)
	fromFile("SHORTENER_URL", raw.ShortenerURL, &cfg.ShortenerURL)
	fromFile("GRPC_ADDRESS", raw.GRPCAddress, &cfg.GRPCAddress)
	fromFile("LOG_LEVEL", raw.LogLevel, &cfg.LogLevel)

	if raw.ShortenerAttempts != 0 && os.Getenv("SHORTENER_ATTEMPTS") == "" {
		cfg.ShortenerAttempts = raw.ShortenerAttempts
	}

	durations := []struct {
		env    string
		val    string
		target *time.Duration
	}{
		{"SHORTENER_BACKOFF", raw.ShortenerBackoff, &cfg.ShortenerBackoff},
		{"SHORTENER_TIMEOUT", raw.ShortenerTimeout, &cfg.ShortenerTimeout},
		{"SHUTDOWN_TIMEOUT", raw.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.val == "" || os.Getenv(d.env) != "" {
			continue
		}
		parsed, err := time.ParseDuration(d.val)
		if err != nil {
			return fmt.Errorf("некорректная длительность %s=%q: %w", d.env, d.val, err)
		}
		*d.target = parsed
	}
	return nil
}

// Validate проверяет корректность конфигурации
func (cfg *Config) Validate() error {
	if cfg.ServerAddress == "" {
		return errors.New("адрес сервера не может быть пустым")
	}
	u, err := url.Parse(cfg.ShortenerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("некорректный адрес сервиса сокращения %q", cfg.ShortenerURL)
	}
	if cfg.ShortenerAttempts < 1 {
		return errors.New("число попыток должно быть положительным")
	}
	if cfg.ShortenerBackoff < 0 || cfg.ShortenerTimeout < 0 || cfg.ShutdownTimeout < 0 {
		return errors.New("длительности не могут быть отрицательными")
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("некорректный уровень логирования %q: %w", cfg.LogLevel, err)
	}
	return nil
}
