// Package container wires the application dependencies.
package container

import (
	"harmony-bridge/internal/app"
	"harmony-bridge/internal/config"
	"harmony-bridge/internal/httpclient"
	"harmony-bridge/internal/proxy"
	"harmony-bridge/internal/router"

	"go.uber.org/dig"
)

// BuildContainer creates the dependency injection container.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		config.NewManager,
		httpclient.NewManager,
		proxy.NewBridgeServer,
		router.NewRouter,
		app.NewApp,
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}
