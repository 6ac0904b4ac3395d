package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TTLStore - хранилище на ttlcache для серверной стороны
// свежесть по-прежнему проверяется координатором при чтении,
// а ttlcache лишь вычищает из памяти записи, которые точно никому не нужны
type TTLStore struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewTTLStore создаёт хранилище, записи которого вытесняются через retention
// retention должен быть не меньше ttl координатора
func NewTTLStore(retention time.Duration) *TTLStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, []byte](retention),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()
	return &TTLStore{cache: c}
}

// Get извлекает запись по ключу
func (s *TTLStore) Get(key string) ([]byte, bool) {
	item := s.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set сохраняет запись с TTL по умолчанию
func (s *TTLStore) Set(key string, value []byte) error {
	s.cache.Set(key, value, ttlcache.DefaultTTL)
	return nil
}

// Delete удаляет запись
func (s *TTLStore) Delete(key string) error {
	s.cache.Delete(key)
	return nil
}

// Close останавливает фоновую очистку ttlcache
func (s *TTLStore) Close() {
	s.cache.Stop()
}
