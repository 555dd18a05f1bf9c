package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

// fakeRedis is a map-backed stand-in for the redis client, good enough
// for idempotency keys, guards and caches.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return val, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeRedis) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeRedis) Close() error { return nil }

// recordingNotifier collects notifications instead of producing them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) byKind(kind models.NotificationKind) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, notification := range n.sent {
		if notification.Kind == kind {
			out = append(out, notification)
		}
	}
	return out
}

// staticConverter converts through a fixed rate table keyed by
// currency, quoted against a common base.
type staticConverter struct {
	rates map[string]float64
	err   error
}

func (c *staticConverter) Convert(ctx context.Context, amount int64, from, to string) (int64, int64, error) {
	if from == to {
		return amount, 1_000_000, nil
	}
	if c.err != nil {
		return 0, 0, c.err
	}
	fromRate, ok := c.rates[from]
	if !ok {
		return 0, 0, fmt.Errorf("%w: no rate for %s", pkgerrors.ErrRateUnavailable, from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return 0, 0, fmt.Errorf("%w: no rate for %s", pkgerrors.ErrRateUnavailable, to)
	}
	effective := toRate / fromRate
	return int64(float64(amount)*effective + 0.5), int64(effective*1_000_000 + 0.5), nil
}
