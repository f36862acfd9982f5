package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "dripflow:token:"

	// ExpiryMargin keeps tokens that are about to expire out of the cache.
	ExpiryMargin = time.Minute
)

// Cache serves refreshed tokens from Redis so concurrent workers do not refresh the same
// account twice. Redis failures fall through to the wrapped refresher.
type Cache struct {
	client redis.UniversalClient
	next   protocol.TokenRefresher
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewCache(client redis.UniversalClient, next protocol.TokenRefresher, clock clockwork.Clock, logger *slog.Logger) *Cache {
	return &Cache{
		client: client,
		next:   next,
		clock:  clock,
		logger: logger.With("component", "token_cache"),
	}
}

func (c *Cache) RefreshToken(ctx context.Context, account *models.ConnectedAccount) (*models.Token, error) {
	key := keyPrefix + account.EmailAddress
	now := c.clock.Now()

	cached, err := c.get(ctx, key)
	if err != nil {
		c.logger.Warn("Token cache read failed", "account", account.EmailAddress, "error", err)
	}

	if cached.Valid(now.Add(ExpiryMargin)) {
		return cached, nil
	}

	token, err := c.next.RefreshToken(ctx, account)
	if err != nil || token == nil {
		return token, err
	}

	ttl := token.ExpiresAt.Sub(now) - ExpiryMargin
	if ttl <= 0 {
		return token, nil
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return nil, err
	}

	err = c.client.Set(ctx, key, payload, ttl).Err()
	if err != nil {
		c.logger.Warn("Token cache write failed", "account", account.EmailAddress, "error", err)
	}

	return token, nil
}

// Invalidate drops the cached token of account, e.g. after the provider rejected it.
func (c *Cache) Invalidate(ctx context.Context, account string) error {
	return c.client.Del(ctx, keyPrefix+account).Err()
}

func (c *Cache) get(ctx context.Context, key string) (*models.Token, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, err
	}

	var token models.Token

	err = json.Unmarshal(data, &token)
	if err != nil {
		return nil, err
	}

	return &token, nil
}
