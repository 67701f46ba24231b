package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"tradebot/internal/exchange"
	"tradebot/pkg/crypto"
	"tradebot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrUnknownUser          = errors.New("invalid user")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// UserProfile - профиль пользователя из файла USER_CONFIG_PATH.
//
// Ключи бирж могут храниться открытым текстом или в виде "enc:<base64>"
// (см. cmd/keytool). BOT_API_KEY - открытый текст или bcrypt-хеш.
type UserProfile struct {
	BotAPIKey string `json:"BOT_API_KEY"`
	Email     string `json:"EMAIL_ADDRESS,omitempty"`
	Exchange  string `json:"EXCHANGE,omitempty"`

	BinanceAPIKey           string `json:"BINANCE_API_KEY,omitempty"`
	BinanceSecretKey        string `json:"BINANCE_SECRET_KEY,omitempty"`
	BinanceTestnetAPIKey    string `json:"BINANCE_TESTNET_API_KEY,omitempty"`
	BinanceTestnetSecretKey string `json:"BINANCE_TESTNET_SECRET_KEY,omitempty"`

	BybitAPIKey           string `json:"BYBIT_API_KEY,omitempty"`
	BybitSecretKey        string `json:"BYBIT_SECRET_KEY,omitempty"`
	BybitTestnetAPIKey    string `json:"BYBIT_TESTNET_API_KEY,omitempty"`
	BybitTestnetSecretKey string `json:"BYBIT_TESTNET_SECRET_KEY,omitempty"`
}

// Credentials возвращает ключи нужной биржи и сети
func (p UserProfile) Credentials(exchangeName string, testnet bool) exchange.Credentials {
	switch strings.ToLower(exchangeName) {
	case exchange.NameBybit:
		if testnet {
			return exchange.Credentials{APIKey: p.BybitTestnetAPIKey, SecretKey: p.BybitTestnetSecretKey}
		}
		return exchange.Credentials{APIKey: p.BybitAPIKey, SecretKey: p.BybitSecretKey}
	default:
		if testnet {
			return exchange.Credentials{APIKey: p.BinanceTestnetAPIKey, SecretKey: p.BinanceTestnetSecretKey}
		}
		return exchange.Credentials{APIKey: p.BinanceAPIKey, SecretKey: p.BinanceSecretKey}
	}
}

// ExchangeOr - биржа пользователя или fallback, если в профиле не указана
func (p UserProfile) ExchangeOr(fallback string) string {
	if p.Exchange == "" {
		return fallback
	}
	return strings.ToLower(p.Exchange)
}

// reveal расшифровывает все секреты профиля
func (p *UserProfile) reveal(key []byte) error {
	fields := []*string{
		&p.BinanceAPIKey, &p.BinanceSecretKey, &p.BinanceTestnetAPIKey, &p.BinanceTestnetSecretKey,
		&p.BybitAPIKey, &p.BybitSecretKey, &p.BybitTestnetAPIKey, &p.BybitTestnetSecretKey,
	}
	for _, f := range fields {
		v, err := crypto.Reveal(*f, key)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// UserStore хранит профили пользователей в памяти.
// Секреты расшифровываются один раз при загрузке.
type UserStore struct {
	mu    sync.RWMutex
	path  string
	key   []byte
	users map[string]UserProfile
}

// LoadUserStore читает файл профилей. encryptionKey может быть пустым,
// тогда зашифрованные значения в файле считаются ошибкой.
func LoadUserStore(path, encryptionKey string) (*UserStore, error) {
	key, err := crypto.ParseKey(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("parse encryption key: %w", err)
	}
	s := &UserStore{path: path, key: key}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewUserStore создает хранилище из готовых профилей (без файла)
func NewUserStore(users map[string]UserProfile, key []byte) (*UserStore, error) {
	s := &UserStore{key: key}
	if err := s.set(users); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload перечитывает файл профилей
func (s *UserStore) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read user config %s: %w", s.path, err)
	}

	var users map[string]UserProfile
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("parse user config %s: %w", s.path, err)
	}
	if err := s.set(users); err != nil {
		return err
	}

	utils.L().WithComponent("users").Info("user config loaded",
		utils.String("path", s.path),
		utils.Int("users", len(users)),
	)
	return nil
}

func (s *UserStore) set(users map[string]UserProfile) error {
	revealed := make(map[string]UserProfile, len(users))
	for id, p := range users {
		if err := p.reveal(s.key); err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
		revealed[id] = p
	}

	s.mu.Lock()
	s.users = revealed
	s.mu.Unlock()
	return nil
}

// Get возвращает профиль по userId
func (s *UserStore) Get(userID string) (UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[userID]
	return p, ok
}

// Len - число профилей
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Authenticate находит пользователя и сверяет ключ auth из тела запроса.
// Ошибки: ErrUnknownUser, ErrAuthenticationFailed.
func (s *UserStore) Authenticate(userID, auth string) (UserProfile, error) {
	if userID == "" {
		return UserProfile{}, ErrUnknownUser
	}
	p, ok := s.Get(userID)
	if !ok {
		return UserProfile{}, ErrUnknownUser
	}
	if err := crypto.VerifyAPIKey(auth, p.BotAPIKey); err != nil {
		return UserProfile{}, ErrAuthenticationFailed
	}
	return p, nil
}
