// Package authstore хранит токен доступа клиента между запусками
package authstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ключи хранилища; authState основной, остальные читаются для совместимости со старыми клиентами
const (
	KeyAuthState = "authState"
	KeyAuthToken = "authToken"
	KeyToken     = "token"
)

// ErrNoToken - токен не найден ни под одним ключом
var ErrNoToken = errors.New("authstore: no token")

// KV - хранилище ключ-значение, например cache.FileStore
type KV interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
}

// State - содержимое ключа authState
type State struct {
	Token string `json:"token"`
	Role  string `json:"role,omitempty"`
}

// Store читает и пишет токен
type Store struct {
	kv KV
}

// New создаёт хранилище токена поверх kv
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Token возвращает токен: authState.token, затем authToken, затем token
// пустые и нечитаемые значения пропускаются
func (s *Store) Token() (string, error) {
	if raw, ok := s.kv.Get(KeyAuthState); ok {
		var st State
		if err := json.Unmarshal(raw, &st); err == nil && strings.TrimSpace(st.Token) != "" {
			return strings.TrimSpace(st.Token), nil
		}
	}
	for _, key := range []string{KeyAuthToken, KeyToken} {
		if raw, ok := s.kv.Get(key); ok {
			if tok := plainValue(raw); tok != "" {
				return tok, nil
			}
		}
	}
	return "", ErrNoToken
}

// Save записывает токен под основным ключом
func (s *Store) Save(st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("authstore: marshal state: %w", err)
	}
	if err := s.kv.Set(KeyAuthState, raw); err != nil {
		return fmt.Errorf("authstore: save: %w", err)
	}
	return nil
}

// Clear удаляет токен под всеми ключами
func (s *Store) Clear() error {
	for _, key := range []string{KeyAuthState, KeyAuthToken, KeyToken} {
		if err := s.kv.Delete(key); err != nil {
			return fmt.Errorf("authstore: clear %s: %w", key, err)
		}
	}
	return nil
}

// plainValue принимает как голую строку, так и строку в JSON-кавычках
func plainValue(raw []byte) string {
	var quoted string
	if err := json.Unmarshal(raw, &quoted); err == nil {
		return strings.TrimSpace(quoted)
	}
	return strings.TrimSpace(string(raw))
}
