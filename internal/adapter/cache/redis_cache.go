package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/redis/go-redis/v9"
)

const (
	orderStatusPrefix = "order:status:"
	shippingPrefix    = "shipping:methods:"
)

// NewClient dials Redis and pings it once so a bad address fails at startup.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisCache holds the last known order status and the shipping method lists.
// A zero ttl keeps entries until overwritten.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type cachedStatus struct {
	UserID    string    `json:"u"`
	Status    string    `json:"s"`
	UpdatedAt time.Time `json:"t"`
}

func (r *RedisCache) SetStatus(ctx context.Context, s usecase.OrderStatus) error {
	raw, err := json.Marshal(cachedStatus{UserID: s.UserID, Status: string(s.Status), UpdatedAt: s.UpdatedAt})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, orderStatusPrefix+s.OrderID, raw, r.ttl).Err()
}

// GetStatus reports a miss for absent or unreadable entries.
func (r *RedisCache) GetStatus(ctx context.Context, orderID string) (usecase.OrderStatus, bool, error) {
	raw, err := r.rdb.Get(ctx, orderStatusPrefix+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return usecase.OrderStatus{}, false, nil
	}
	if err != nil {
		return usecase.OrderStatus{}, false, err
	}
	var c cachedStatus
	if err := json.Unmarshal(raw, &c); err != nil || c.UserID == "" {
		return usecase.OrderStatus{}, false, nil
	}
	return usecase.OrderStatus{
		OrderID:   orderID,
		UserID:    c.UserID,
		Status:    domain.Status(c.Status),
		UpdatedAt: c.UpdatedAt,
	}, true, nil
}

func (r *RedisCache) GetMethods(ctx context.Context, key string) ([]domain.ShippingMethod, bool, error) {
	raw, err := r.rdb.Get(ctx, shippingPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []domain.ShippingMethod
	if err := json.Unmarshal(raw, &out); err != nil {
		// a corrupt entry is a miss; the next Set overwrites it
		return nil, false, nil
	}
	return out, true, nil
}

func (r *RedisCache) SetMethods(ctx context.Context, key string, methods []domain.ShippingMethod) error {
	raw, err := json.Marshal(methods)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, shippingPrefix+key, raw, r.ttl).Err()
}

func (r *RedisCache) InvalidateMethods(ctx context.Context) error {
	return r.rdb.Del(ctx, shippingPrefix+"all", shippingPrefix+"active").Err()
}

var (
	_ usecase.OrderCache    = (*RedisCache)(nil)
	_ usecase.ShippingCache = (*RedisCache)(nil)
)
