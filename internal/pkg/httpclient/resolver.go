package httpclient

import (
	"context"
	"fmt"

	"shopcart/internal/pkg/nacos"
)

// Resolver 把服务名解析为 "http://host:port" 形式的基础地址。
type Resolver interface {
	Resolve(ctx context.Context, serviceName string) (string, error)
}

// StaticResolver 使用固定的服务名 -> 地址映射，适合本地开发和测试。
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, serviceName string) (string, error) {
	base, ok := r[serviceName]
	if !ok || base == "" {
		return "", fmt.Errorf("no static address configured for service '%s'", serviceName)
	}
	return base, nil
}

// NacosResolver 每次调用都从 Nacos 选择一个健康实例。
type NacosResolver struct {
	client *nacos.Client
}

func NewNacosResolver(client *nacos.Client) *NacosResolver {
	return &NacosResolver{client: client}
}

func (r *NacosResolver) Resolve(_ context.Context, serviceName string) (string, error) {
	ip, port, err := r.client.DiscoverServiceInstance(serviceName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", ip, port), nil
}
