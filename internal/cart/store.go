package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/pkg/redis"
)

// Item is one cart line. VendorID is a snapshot taken when the line was added.
type Item struct {
	ProductID uuid.UUID `json:"product_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Cart is the client's working set, ordered by insertion.
type Cart struct {
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Cart) find(productID uuid.UUID) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(productID uuid.UUID) bool {
	if idx := c.find(productID); idx >= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return true
	}
	return false
}

// Store persists carts keyed by client.
type Store interface {
	Load(ctx context.Context, clientID uuid.UUID) (*Cart, error)
	Save(ctx context.Context, clientID uuid.UUID, cart *Cart) error
	Delete(ctx context.Context, clientID uuid.UUID) error
}

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(clientID string) string
}

// RedisStore keeps each cart as a JSON document with a sliding TTL.
type RedisStore struct {
	client kv
	ttl    time.Duration
}

func NewRedisStore(client kv, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, clientID uuid.UUID) (*Cart, error) {
	raw, err := s.client.Get(ctx, s.client.CartKey(clientID.String()))
	if errors.Is(err, redis.ErrNil) {
		return &Cart{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &cart, nil
}

func (s *RedisStore) Save(ctx context.Context, clientID uuid.UUID, cart *Cart) error {
	if len(cart.Items) == 0 {
		return s.Delete(ctx, clientID)
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.client.CartKey(clientID.String()), payload, s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context, clientID uuid.UUID) error {
	return s.client.Del(ctx, s.client.CartKey(clientID.String()))
}

// MemoryStore backs carts with a map for single-process runs.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[uuid.UUID]Cart)}
}

func (s *MemoryStore) Load(_ context.Context, clientID uuid.UUID) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[clientID]
	cart.Items = append([]Item(nil), cart.Items...)
	return &cart, nil
}

func (s *MemoryStore) Save(_ context.Context, clientID uuid.UUID, cart *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cart.Items) == 0 {
		delete(s.carts, clientID)
		return nil
	}
	s.carts[clientID] = Cart{Items: append([]Item(nil), cart.Items...), UpdatedAt: cart.UpdatedAt}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, clientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, clientID)
	return nil
}
