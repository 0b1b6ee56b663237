// Package app provides the main application logic and lifecycle management.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"harmony-bridge/internal/types"
	"harmony-bridge/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
)

// App holds the HTTP server and manages the application lifecycle.
type App struct {
	engine        *gin.Engine
	configManager types.ConfigManager
	httpServer    *http.Server
}

// AppParams defines the dependencies for the App.
type AppParams struct {
	dig.In
	Engine        *gin.Engine
	ConfigManager types.ConfigManager
}

// NewApp is the constructor for App, with dependencies injected by dig.
func NewApp(params AppParams) *App {
	return &App{
		engine:        params.Engine,
		configManager: params.ConfigManager,
	}
}

// Start launches the HTTP server.
func (a *App) Start() error {
	serverConfig := a.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port)

	// No WriteTimeout: event streams stay open for the lifetime of the
	// upstream generation.
	a.httpServer = &http.Server{
		Addr:        addr,
		Handler:     a.engine,
		ReadTimeout: time.Duration(serverConfig.ReadTimeout) * time.Second,
		IdleTimeout: time.Duration(serverConfig.IdleTimeout) * time.Second,
	}

	logrus.Infof("Harmony bridge v%s starting on %s", version.Version, addr)
	a.configManager.DisplayServerConfig()

	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts down the HTTP server.
func (a *App) Stop(ctx context.Context) {
	logrus.Info("Shutting down server...")

	serverConfig := a.configManager.GetServerConfig()
	shutdownTimeout := time.Duration(serverConfig.GracefulShutdownTimeout) * time.Second

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Debug("HTTP server graceful shutdown timed out, forcing remaining connections to close.")
		if closeErr := a.httpServer.Close(); closeErr != nil {
			logrus.Errorf("Error forcing HTTP server to close: %v", closeErr)
		}
	}
	logrus.Infof("HTTP server has been shut down. (took %v)", time.Since(start))
}
