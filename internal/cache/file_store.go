package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore хранит записи в одном JSON-файле
// используется CLI как аналог sessionStorage между запусками в рамках одной сессии
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore создаёт хранилище поверх файла, сам файл создаётся при первой записи
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get читает запись по ключу
// битый файл трактуется как пустое хранилище
func (s *FileStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return nil, false
	}
	value, ok := items[key]
	if !ok {
		return nil, false
	}
	return []byte(value), true
}

// Set записывает значение по ключу
func (s *FileStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		items = map[string]string{}
	}
	items[key] = string(value)
	return s.write(items)
}

// Delete удаляет запись по ключу
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		// файл битый или отсутствует - удалять нечего, но битый файл перезапишем пустым
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return s.write(map[string]string{})
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return s.write(items)
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	items := map[string]string{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("corrupted store file %s: %w", s.path, err)
	}
	return items, nil
}

// write пишет во временный файл и переименовывает, чтобы не оставить файл наполовину записанным
func (s *FileStore) write(items map[string]string) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
