package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/querygate/querygate/internal/core/port"
)

// Server wraps the gin engine and the http.Server lifecycle.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router: /health is open, everything under /v1
// requires the bearer token.
func NewServer(addr, bearerToken string, handlers *Handlers, logger *slog.Logger, inst port.Instrumentation) *Server {
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(recovery(logger), accessLog(logger, inst))

	router.GET("/health", handlers.handleHealth)

	v1 := router.Group("/v1", bearerAuth(bearerToken))
	{
		v1.POST("/chat", handlers.handleChat)
		v1.POST("/query", handlers.handleQuery)
		v1.GET("/schema", handlers.handleSchema)
		v1.POST("/schema/refresh", handlers.handleRefreshSchema)
		v1.GET("/tables", handlers.handleListTables)
		v1.POST("/tables", handlers.handleAddTable)
		v1.DELETE("/tables/:table", handlers.handleRemoveTable)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Serve runs the server until ctx is canceled, then drains with a grace
// period.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
