package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	liquidityDepthKey = "liquidity:depth"
	routesKeyPrefix   = "routes:"
)

// RedisLiquidityProvider reads per-token liquidity depth from a Redis hash
// maintained by the market-data pipeline. Depths are stored as decimal
// strings keyed by lowercase token address.
type RedisLiquidityProvider struct {
	client *redis.Client
}

func NewRedisLiquidityProvider(client *redis.Client) *RedisLiquidityProvider {
	return &RedisLiquidityProvider{client: client}
}

func (p *RedisLiquidityProvider) GetLiquidityDepth(ctx context.Context, token string) (decimal.Decimal, error) {
	raw, err := p.client.HGet(ctx, liquidityDepthKey, token).Result()
	if err == redis.Nil {
		return decimal.Zero, fmt.Errorf("no liquidity data for token %s", token)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read liquidity depth: %w", err)
	}
	depth, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse liquidity depth for %s: %w", token, err)
	}
	return depth, nil
}

// RedisRouteFinder reads precomputed alternative swap routes, one JSON
// array of token-address paths per token.
type RedisRouteFinder struct {
	client *redis.Client
}

func NewRedisRouteFinder(client *redis.Client) *RedisRouteFinder {
	return &RedisRouteFinder{client: client}
}

func (f *RedisRouteFinder) FindAlternativeRoutes(ctx context.Context, tokens []string) ([][]string, error) {
	var routes [][]string
	for _, token := range tokens {
		raw, err := f.client.Get(ctx, routesKeyPrefix+token).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read routes for %s: %w", token, err)
		}
		var paths [][]string
		if err := json.Unmarshal([]byte(raw), &paths); err != nil {
			return nil, fmt.Errorf("parse routes for %s: %w", token, err)
		}
		routes = append(routes, paths...)
	}
	return routes, nil
}
