package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradebot/pkg/crypto"
	"tradebot/pkg/utils"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Trading  TradingConfig
	Webhook  WebhookConfig
	Logging  LoggingConfig
	Users    UsersConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Origin'ы, допущенные к /ws/stream. Пусто - любые.
	AllowedOrigins []string
}

// DatabaseConfig - журнал сделок в PostgreSQL. Без DB_ENABLED журнал не ведётся.
type DatabaseConfig struct {
	Enabled  bool
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - ключ для расшифровки секретов бирж в файле пользователей
type SecurityConfig struct {
	EncryptionKey string
}

// TradingConfig - параметры исполнения сделок
type TradingConfig struct {
	DefaultExchange  string
	MaxPortfolioRisk float64 // риск по умолчанию, если в запросе не задан
	ATRWindow        int
	RequestTimeout   time.Duration // на весь запрос вебхука, включая вызовы биржи

	// Темп запросов к одной бирже (общий на все запросы процесса)
	ExchangeRPS   float64
	ExchangeBurst int
}

// WebhookConfig - ограничение частоты входящих вебхуков по IP
type WebhookConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxy - сервер стоит за своим reverse proxy,
	// IP клиента берётся из X-Forwarded-For
	TrustProxy bool
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// UsersConfig - файл профилей пользователей
type UsersConfig struct {
	ConfigPath string
}

// Load загружает конфигурацию из переменных окружения.
// Файл .env в рабочем каталоге необязателен.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS:        getEnvAsBool("USE_HTTPS", false),
			CertFile:        getEnv("CERT_FILE", ""),
			KeyFile:         getEnv("KEY_FILE", ""),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradebot"),
			User:     getEnv("DB_USER", "tradebot"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Trading: TradingConfig{
			DefaultExchange:  strings.ToLower(getEnv("DEFAULT_EXCHANGE", "binance")),
			MaxPortfolioRisk: getEnvAsFloat("DEFAULT_MAX_PORTFOLIO_RISK", 1.5),
			ATRWindow:        getEnvAsInt("ATR_WINDOW", 14),
			RequestTimeout:   getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
			ExchangeRPS:      getEnvAsFloat("EXCHANGE_RPS", 10),
			ExchangeBurst:    getEnvAsInt("EXCHANGE_BURST", 20),
		},
		Webhook: WebhookConfig{
			RateLimitRPS:   getEnvAsFloat("WEBHOOK_RATE_LIMIT_RPS", 5),
			RateLimitBurst: getEnvAsInt("WEBHOOK_RATE_LIMIT_BURST", 10),
			TrustProxy:     getEnvAsBool("TRUST_PROXY", false),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
		Users: UsersConfig{
			ConfigPath: getEnv("USER_CONFIG_PATH", "users.json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity: ключ необязателен, но если задан - должен разбираться
func (c *Config) validateSecurity() error {
	if c.Security.EncryptionKey == "" {
		return nil
	}
	if _, err := crypto.ParseKey(c.Security.EncryptionKey); err != nil {
		return fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Enabled && (c.Database.Port < 1 || c.Database.Port > 65535) {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Server.UseHTTPS && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("CERT_FILE and KEY_FILE are required when USE_HTTPS is set")
	}

	if err := utils.ValidateExchange(c.Trading.DefaultExchange); err != nil {
		return fmt.Errorf("DEFAULT_EXCHANGE: %w", err)
	}

	if c.Trading.MaxPortfolioRisk <= 0 || c.Trading.MaxPortfolioRisk >= 100 {
		return fmt.Errorf("DEFAULT_MAX_PORTFOLIO_RISK must be in (0, 100), got %v", c.Trading.MaxPortfolioRisk)
	}

	if c.Trading.ATRWindow < 1 {
		return fmt.Errorf("ATR_WINDOW must be positive, got %d", c.Trading.ATRWindow)
	}

	if c.Trading.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.Trading.RequestTimeout)
	}

	if c.Trading.ExchangeRPS <= 0 || c.Trading.ExchangeBurst < 1 {
		return fmt.Errorf("EXCHANGE_RPS and EXCHANGE_BURST must be positive, got %v/%d",
			c.Trading.ExchangeRPS, c.Trading.ExchangeBurst)
	}

	if c.Webhook.RateLimitRPS <= 0 || c.Webhook.RateLimitBurst < 1 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT_RPS and WEBHOOK_RATE_LIMIT_BURST must be positive, got %v/%d",
			c.Webhook.RateLimitRPS, c.Webhook.RateLimitBurst)
	}

	return nil
}

// LogConfig переводит настройки в конфигурацию логгера
func (l LoggingConfig) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList разбирает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
