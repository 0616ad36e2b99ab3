package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fanjava-backend/pkg/redis"
)

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.ErrNil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeKV) CartKey(clientID string) string {
	return "fanjava:cart:" + clientID
}

func TestRedisStoreRoundTrip(t *testing.T) {
	kv := newFakeKV()
	store, err := NewRedisStore(kv, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	client := uuid.New()

	empty, err := store.Load(ctx, client)
	require.NoError(t, err)
	require.Empty(t, empty.Items)

	item := Item{ProductID: uuid.New(), VendorID: uuid.New(), Quantity: 2}
	require.NoError(t, store.Save(ctx, client, &Cart{Items: []Item{item}}))
	require.Equal(t, time.Hour, kv.ttls[kv.CartKey(client.String())])

	loaded, err := store.Load(ctx, client)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	require.Equal(t, item.ProductID, loaded.Items[0].ProductID)

	require.NoError(t, store.Save(ctx, client, &Cart{}))
	require.NotContains(t, kv.values, kv.CartKey(client.String()))
}

func TestRedisStoreRejectsCorruptPayload(t *testing.T) {
	kv := newFakeKV()
	store, _ := NewRedisStore(kv, 0)
	client := uuid.New()
	kv.values[kv.CartKey(client.String())] = "{"

	_, err := store.Load(context.Background(), client)
	require.Error(t, err)
}
