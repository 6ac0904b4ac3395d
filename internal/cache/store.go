package cache

import (
	"sync"
)

// Store - хранилище сырых записей кэша по строковому ключу
// по смыслу это sessionStorage: значения - сериализованные записи, без собственного TTL
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
}

// MemoryStore - потокобезопасное in-memory хранилище
type MemoryStore struct {
	// ключ - string (scope key), значение - []byte
	storage sync.Map
}

// NewMemoryStore создаёт новый экземпляр хранилища
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get извлекает запись по ключу
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	value, ok := s.storage.Load(key)
	if !ok {
		return nil, false
	}

	// выполняем безопасное приведение типа
	raw, ok := value.([]byte)
	return raw, ok
}

// Set добавляет или перезаписывает запись (last-write-wins)
func (s *MemoryStore) Set(key string, value []byte) error {
	s.storage.Store(key, value)
	return nil
}

// Delete удаляет запись, отсутствие ключа ошибкой не считается
func (s *MemoryStore) Delete(key string) error {
	s.storage.Delete(key)
	return nil
}
