package fx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapRedis() *mapRedis {
	return &mapRedis{data: make(map[string]string)}
}

func (m *mapRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return val, nil
}

func (m *mapRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mapRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *mapRedis) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mapRedis) Close() error { return nil }

func TestRateFetchesAndCaches(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/USD", r.URL.Path)
		w.Write([]byte(`{"rates":{"USD":1,"CDF":2500.0,"KES":130.0}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "USD", newMapRedis())

	rate, err := client.Rate(context.Background(), "CDF")
	require.NoError(t, err)
	assert.Equal(t, 2500.0, rate)

	// The whole table was cached; no second fetch.
	rate, err = client.Rate(context.Background(), "KES")
	require.NoError(t, err)
	assert.Equal(t, 130.0, rate)
	assert.Equal(t, 1, requests)
}

func TestRateBaseCurrencyIsIdentity(t *testing.T) {
	client := NewClient("http://unreachable.invalid", "USD", newMapRedis())
	rate, err := client.Rate(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
}

func TestRateConversionRatesShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"conversion_rates":{"CDF":2400.0}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "USD", newMapRedis())
	rate, err := client.Rate(context.Background(), "CDF")
	require.NoError(t, err)
	assert.Equal(t, 2400.0, rate)
}

func TestRateUnavailableOnAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "USD", newMapRedis())
	_, err := client.Rate(context.Background(), "CDF")
	require.ErrorIs(t, err, pkgerrors.ErrRateUnavailable)
}

func TestRateUnavailableForUnknownCurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"CDF":2500.0}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "USD", newMapRedis())
	_, err := client.Rate(context.Background(), "XXX")
	require.ErrorIs(t, err, pkgerrors.ErrRateUnavailable)
}
