// cmd/inventory-service/main.go
package main

import (
	"context"

	"shopcart/internal/pkg/bootstrap"
	"shopcart/internal/pkg/constants"
	"shopcart/internal/pkg/logger"
	"shopcart/internal/pkg/nacos"
	"shopcart/internal/service/inventory/application"
	"shopcart/internal/service/inventory/infrastructure/adapter"
	"shopcart/internal/service/inventory/interfaces"
)

func main() {
	logger.Init(constants.InventoryService, "info")
	ctx := context.Background()

	cfg, err := bootstrap.LoadConfig(bootstrap.ConfigPath(constants.InventoryService))
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(constants.InventoryService, cfg.App.LogLevel)

	repo, err := adapter.NewCatalogYAMLAdapter(cfg.Infra.Inventory.SeedFile)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("failed to load product catalog")
	}
	handler := interfaces.NewInventoryHandler(application.NewInventoryService(repo))

	var nacosClient *nacos.Client
	if cfg.Infra.Nacos.Enabled {
		if nacosClient, err = nacos.NewClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group); err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Msg("failed to create nacos client")
		}
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.InventoryService,
		Port:        cfg.App.Port,
		Nacos:       nacosClient,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
	})
}
