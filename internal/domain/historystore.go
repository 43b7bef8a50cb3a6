package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisOpTimeout bounds how long a single Load/Save round trip may take.
// BuildBTHFromMetainfo calls Load directly on the BTM's single event-loop
// goroutine, so an unreachable or slow Redis must fail fast rather than
// stall every connection's command processing until the deadlock watchdog
// fires; Tick() runs each Save in its own goroutine, and the timeout keeps
// those from piling up indefinitely.
const redisOpTimeout = 3 * time.Second

// HistoryStore persists a BTH's throughput rings so BTHTHROUGHPUT history
// survives a daemon restart. Mirrors the interface/{memory,redis} backend
// split self20-mika's store package uses for its TorrentStore.
type HistoryStore interface {
	Load(clientIdx int, infoHash []byte) (down, up []int64, ok bool)
	Save(clientIdx int, infoHash []byte, down, up []int64) error
}

// MemoryHistoryStore is the driverName == "memory" backend: it never
// leaves the process, so it only helps across Reconfigure, not restarts.
type MemoryHistoryStore struct {
	mu   sync.RWMutex
	data map[string][2][]int64
}

// NewMemoryHistoryStore constructs an empty in-process store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{data: make(map[string][2][]int64)}
}

func historyKey(clientIdx int, infoHash []byte) string {
	return fmt.Sprintf("%d:%x", clientIdx, infoHash)
}

func (s *MemoryHistoryStore) Load(clientIdx int, infoHash []byte) ([]int64, []int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[historyKey(clientIdx, infoHash)]
	if !ok {
		return nil, nil, false
	}
	return v[0], v[1], true
}

func (s *MemoryHistoryStore) Save(clientIdx int, infoHash []byte, down, up []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[historyKey(clientIdx, infoHash)] = [2][]int64{down, up}
	return nil
}

// RedisHistoryStore is the driverName == "redis" backend, grounded on
// modasi-mika/self20-mika's redis-backed store (the same driver family,
// github.com/go-redis/redis). It JSON-encodes the two rings into one key
// per BTH rather than modelling mika's full peer/torrent schema, since the
// control plane only needs the rings, not a tracker's swarm state.
type RedisHistoryStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisHistoryStore wraps an already-configured redis client. Every
// Load/Save gets its own bounded-deadline context rather than sharing one
// background context, so a wedged Redis fails the single call instead of
// hanging indefinitely.
func NewRedisHistoryStore(client *redis.Client) *RedisHistoryStore {
	return &RedisHistoryStore{client: client, timeout: redisOpTimeout}
}

type redisHistoryPayload struct {
	Down []int64 `json:"down"`
	Up   []int64 `json:"up"`
}

func (s *RedisHistoryStore) Load(clientIdx int, infoHash []byte) ([]int64, []int64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	raw, err := s.client.Get(ctx, "liasis:throughput:"+historyKey(clientIdx, infoHash)).Bytes()
	if err != nil {
		return nil, nil, false
	}
	var p redisHistoryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, false
	}
	return p.Down, p.Up, true
}

// Save is called from the per-BTH goroutines MemoryDomain.Tick() starts,
// not from the BTM's event-loop goroutine; s.timeout bounds how long each
// call stays in flight, so a persistence hiccup degrades throughput-history
// durability, not the rest of the daemon's responsiveness.
func (s *RedisHistoryStore) Save(clientIdx int, infoHash []byte, down, up []int64) error {
	raw, err := json.Marshal(redisHistoryPayload{Down: down, Up: up})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Set(ctx, "liasis:throughput:"+historyKey(clientIdx, infoHash), raw, 0).Err()
}
