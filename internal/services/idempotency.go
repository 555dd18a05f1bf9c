package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

const requestKeyTTL = 24 * time.Hour

// requestGuard implements the idempotency protocol shared by every
// externally triggered mutation. The first call claims the key and
// stores its result; a duplicate with the same key replays that result,
// and a duplicate arriving while the first is still running is
// rejected.
type requestGuard struct {
	redisClient redis.RedisClient
}

// begin claims the key. A replay of a finished request decodes the
// stored first result into out and reports replayed=true.
func (g requestGuard) begin(ctx context.Context, key string, out any) (string, bool, error) {
	if key == "" {
		key = uuid.NewString()
	}
	requestKey := "request:" + key

	if val, err := g.redisClient.Get(ctx, requestKey); err == nil {
		if val == "pending" {
			return "", false, pkgerrors.ErrRequestInFlight
		}
		if err := json.Unmarshal([]byte(val), out); err != nil {
			slog.Error("failed to decode cached request result", "key", key, "error", err)
			return "", false, fmt.Errorf("%w: corrupt idempotency record", pkgerrors.ErrInternal)
		}
		slog.Info("idempotent replay served from cache", "key", key)
		return "", true, nil
	} else if !stderrors.Is(err, redis.ErrKeyNotFound) {
		return "", false, fmt.Errorf("%w: idempotency store unavailable", pkgerrors.ErrInternal)
	}

	ok, err := g.redisClient.SetNX(ctx, requestKey, "pending", requestKeyTTL)
	if err != nil {
		return "", false, fmt.Errorf("%w: idempotency store unavailable", pkgerrors.ErrInternal)
	}
	if !ok {
		return "", false, pkgerrors.ErrRequestInFlight
	}
	return requestKey, false, nil
}

// finish stores the result for replays. The mutation is already
// committed, so the write is detached from the caller's context.
func (g requestGuard) finish(ctx context.Context, requestKey string, result any) {
	payload, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to marshal request result", "key", requestKey, "error", err)
		return
	}
	if err := g.redisClient.Set(context.WithoutCancel(ctx), requestKey, string(payload), requestKeyTTL); err != nil {
		slog.Error("failed to store request result", "key", requestKey, "error", err)
	}
}

// fail clears the in-flight marker so the caller may retry the same
// key. Detached from the caller's context: a canceled request must not
// leave its key claimed for the full TTL.
func (g requestGuard) fail(ctx context.Context, requestKey string) {
	if err := g.redisClient.Del(context.WithoutCancel(ctx), requestKey); err != nil {
		slog.Error("failed to clear request key", "key", requestKey, "error", err)
	}
}
