// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"shopcart/internal/pkg/logger"
	"shopcart/internal/pkg/nacos"
	"shopcart/internal/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client
	Config *Config
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// Nacos 不为空时，启动后注册实例，关停时注销
	Nacos *nacos.Client
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx)
	// Cleanups 在 HTTP 服务器关闭后按后进先出的顺序执行
	Cleanups []func(ctx context.Context) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑，阻塞直到收到 SIGINT/SIGTERM。
func StartService(info AppInfo) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, info); err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Str("service", info.ServiceName).Msg("service terminated with error")
	}
}

// Run 启动服务并在 ctx 结束时优雅关停。
func Run(ctx context.Context, info AppInfo) error {
	tp, err := tracing.InitTracerProvider(info.ServiceName, GetCurrentConfig().Infra.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "failed to initialize tracer provider")
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: info.Nacos, Config: GetCurrentConfig()})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var ip string
	if info.Nacos != nil {
		if ip, err = getOutboundIP(); err != nil {
			return errors.Wrap(err, "failed to get outbound IP address")
		}
		if err := info.Nacos.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Ctx(ctx).Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "could not listen on %s", server.Addr)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Ctx(ctx).Info().Str("service", info.ServiceName).Msg("Shutting down service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// a. 先从 Nacos 注销，避免新流量进来
		if info.Nacos != nil {
			if err := info.Nacos.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				logger.Ctx(shutdownCtx).Error().Err(err).Msg("Error deregistering from Nacos")
			}
		}

		// b. 关闭 HTTP 服务器
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Ctx(shutdownCtx).Error().Err(err).Msg("Error shutting down http server")
		}

		// c. 执行服务自己的清理逻辑（后进先出）
		for i := len(info.Cleanups) - 1; i >= 0; i-- {
			if err := info.Cleanups[i](shutdownCtx); err != nil {
				logger.Ctx(shutdownCtx).Error().Err(err).Msg("cleanup failed")
			}
		}

		// d. 最后关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Ctx(shutdownCtx).Error().Err(err).Msg("Error shutting down tracer provider")
		}
		if info.Nacos != nil {
			info.Nacos.Close()
		}

		logger.Ctx(shutdownCtx).Info().Str("service", info.ServiceName).Msg("gracefully shut down")
		return nil
	})

	return g.Wait()
}

// ConfigPath 返回 CONFIG_PATH，未设置时使用 configs/<service>.yaml
func ConfigPath(serviceName string) string {
	if v, ok := os.LookupEnv("CONFIG_PATH"); ok && v != "" {
		return v
	}
	return "configs/" + serviceName + ".yaml"
}

// getOutboundIP 取本机对外通信使用的 IP，用于服务注册
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
