package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

const lastPriceTTL = 24 * time.Hour

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// PriceService remembers the last traded price seen per account. It backs
// close-open-trades when an event carries no price of its own.
type PriceService struct {
	tracer trace.Tracer
	redis  RedisClient
}

func NewPriceService(tracer trace.Tracer, redisClient RedisClient) *PriceService {
	return &PriceService{tracer: tracer, redis: redisClient}
}

func lastPriceKey(accountID int64) string {
	return "price:last:" + strconv.FormatInt(accountID, 10)
}

// RecordPrice stores price as the latest seen for the account.
func (s *PriceService) RecordPrice(ctx context.Context, accountID int64, price decimal.Decimal) error {
	if s.redis == nil {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "price-service.record-price")
	defer span.End()

	return s.redis.Set(ctx, lastPriceKey(accountID), price.String(), lastPriceTTL).Err()
}

// LastPrice returns the latest recorded price. ok is false when none is known.
func (s *PriceService) LastPrice(ctx context.Context, accountID int64) (decimal.Decimal, bool, error) {
	if s.redis == nil {
		return decimal.Zero, false, nil
	}
	ctx, span := s.tracer.Start(ctx, "price-service.last-price")
	defer span.End()

	raw, err := s.redis.Get(ctx, lastPriceKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("cached price for account %d: %w", accountID, err)
	}
	return price, true, nil
}
