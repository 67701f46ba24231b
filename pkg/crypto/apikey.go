package crypto

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Ключ бота (BOT_API_KEY) хранится либо bcrypt-хешем, либо открытым
// текстом для локальной разработки.

var (
	ErrEmptyKey    = errors.New("api key cannot be empty")
	ErrKeyTooLong  = errors.New("api key exceeds 72 bytes")
	ErrKeyMismatch = errors.New("api key does not match")
)

// DefaultCost - стоимость bcrypt
const DefaultCost = 12

// MaxKeyLength - ограничение bcrypt
const MaxKeyLength = 72

// HashAPIKey хеширует ключ бота
func HashAPIKey(key string, cost int) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if len(key) > MaxKeyLength {
		return "", ErrKeyTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsBcryptHash распознаёт хеш по префиксу версии ($2a$, $2b$, $2y$)
func IsBcryptHash(s string) bool {
	return len(s) == 60 &&
		(strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// VerifyAPIKey сравнивает присланный ключ с сохранённым.
// Хеш проверяется через bcrypt, открытый текст - за постоянное время.
func VerifyAPIKey(provided, stored string) error {
	if provided == "" || stored == "" {
		return ErrEmptyKey
	}

	if IsBcryptHash(stored) {
		if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided)); err != nil {
			return ErrKeyMismatch
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(provided), []byte(stored)) != 1 {
		return ErrKeyMismatch
	}
	return nil
}
