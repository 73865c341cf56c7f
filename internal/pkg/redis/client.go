// internal/pkg/redis/client.go
package redis

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"shopcart/internal/pkg/logger"
)

// Nil 透出 go-redis 的 key 不存在错误，调用方无需直接依赖 go-redis
var Nil = goredis.Nil

// Client 封装了 go-redis 的 UniversalClient。
// 单个地址时是普通客户端，多个地址时是集群客户端。
type Client struct {
	client goredis.UniversalClient
}

// NewClient addrs 格式为 "host1:port1,host2:port2"
func NewClient(addrs string) (*Client, error) {
	var list []string
	for _, a := range strings.Split(addrs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			list = append(list, a)
		}
	}
	if len(list) == 0 {
		return nil, errors.New("no redis address configured")
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        list,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})
	return &Client{client: client}, nil
}

// NewFromUniversal 包装一个已有的客户端，测试中用于接入 miniredis
func NewFromUniversal(client goredis.UniversalClient) *Client {
	return &Client{client: client}
}

// Ping 带重试地检查连接，直到成功或 ctx 结束
func (c *Client) Ping(ctx context.Context, attempts int) error {
	var lastErr error
	backoff := 200 * time.Millisecond
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = c.client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return nil
		}
		logger.Ctx(ctx).Warn().Err(lastErr).Int("attempt", i).Msg("redis ping failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
	return errors.Wrapf(lastErr, "redis not reachable after %d attempts", attempts)
}

// GetClient 返回底层客户端，用于 pipeline 等高级操作
func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
