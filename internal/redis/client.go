package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"cna-data-service/internal/collector"
)

// 实时行情镜像
//
// Optional mirror of the latest collected quote per symbol plus the last
// pass summary, so live consumers can read current state without touching
// the data files. Keys expire on their own; the files remain the durable
// record.

type Client struct {
	rdb *redis.Client
}

func NewClient(addr, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Client{rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rdb.Ping(ctx).Result()
	return err
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis键名生成方法
func (c *Client) QuoteKey(code string) string {
	return fmt.Sprintf("cna:quote:%s", code)
}

func (c *Client) StatusKey() string {
	return "cna:collector:status"
}

// StoreQuote mirrors the latest quote snapshot for one symbol.
func (c *Client) StoreQuote(ctx context.Context, quote collector.QuoteSnapshot) error {
	jsonData, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	// 行情10分钟过期
	if err := c.rdb.SetEX(ctx, c.QuoteKey(quote.SymbolCode), jsonData, 10*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to store quote: %w", err)
	}
	return nil
}

// GetQuote reads the mirrored quote, nil when absent.
func (c *Client) GetQuote(ctx context.Context, code string) (*collector.QuoteSnapshot, error) {
	result, err := c.rdb.Get(ctx, c.QuoteKey(code)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	var quote collector.QuoteSnapshot
	if err := json.Unmarshal([]byte(result), &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &quote, nil
}

// StoreSummary mirrors the last pass summary.
func (c *Client) StoreSummary(ctx context.Context, summary *collector.Summary) error {
	jsonData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	// 状态2小时过期
	if err := c.rdb.SetEX(ctx, c.StatusKey(), jsonData, 2*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}

// GetSummary reads the mirrored pass summary, nil when absent.
func (c *Client) GetSummary(ctx context.Context) (*collector.Summary, error) {
	result, err := c.rdb.Get(ctx, c.StatusKey()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	var summary collector.Summary
	if err := json.Unmarshal([]byte(result), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}
