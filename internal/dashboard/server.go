// Package dashboard serves the JSON API and the live chat stream.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medihelp/carewire/internal/aggregate"
	"github.com/medihelp/carewire/internal/feed"
	"github.com/medihelp/carewire/internal/identity"
	"github.com/medihelp/carewire/internal/mutate"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Store      store.Store
	Feed       feed.Feed
	Gateway    *mutate.Gateway
	Aggregator *aggregate.Aggregator
	Identity   *identity.Resolver
	Logger     *zap.Logger
	Port       int
	Out        io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("dashboard: store is required")
	}
	if opts.Gateway == nil {
		return fmt.Errorf("dashboard: gateway is required")
	}
	if opts.Aggregator == nil {
		return fmt.Errorf("dashboard: aggregator is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := NewRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// NewRouter builds the gin router with all API routes registered.
func NewRouter(opts StartOpts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
