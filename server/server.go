package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/stockwear/internal/profile"
	apiv1 "github.com/hrygo/stockwear/server/router/api/v1"
	"github.com/hrygo/stockwear/server/runner/embedding"
	"github.com/hrygo/stockwear/store"
)

type Server struct {
	Profile  *profile.Profile
	Store    *store.Store
	Services *Services

	echoServer   *echo.Echo
	runnerCancel context.CancelFunc
	runnerDone   chan struct{}
}

func NewServer(_ context.Context, profile *profile.Profile, store *store.Store, opts ...ServicesOption) (*Server, error) {
	services, err := NewServices(profile, store, opts...)
	if err != nil {
		return nil, err
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	apiV1Service := apiv1.NewAPIV1Service(profile, services.Recognizer, services.Feedback, services.References)
	apiV1Service.RegisterRoutes(echoServer)

	return &Server{
		Profile:    profile,
		Store:      store,
		Services:   services,
		echoServer: echoServer,
	}, nil
}

// Start begins serving and launches the background runner. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()

	s.startRunner(ctx)
	return nil
}

func (s *Server) startRunner(ctx context.Context) {
	if !s.Profile.RunnerEnabled || !s.Services.Embedder.IsEnabled() {
		slog.Info("embedding runner disabled")
		return
	}
	runnerCtx, cancel := context.WithCancel(ctx)
	s.runnerCancel = cancel
	s.runnerDone = make(chan struct{})
	runner := embedding.NewRunner(s.Services.References, s.Profile.RunnerInterval, s.Profile.RunnerBatchSize)
	go func() {
		defer close(s.runnerDone)
		runner.Run(runnerCtx)
	}()
	slog.Info("embedding runner started", "interval", s.Profile.RunnerInterval, "batch_size", s.Profile.RunnerBatchSize)
}

// Shutdown stops the HTTP server and the runner, drains background writes and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if s.runnerCancel != nil {
		s.runnerCancel()
		select {
		case <-s.runnerDone:
		case <-ctx.Done():
			slog.Warn("embedding runner did not stop in time")
		}
	}

	s.Services.Wait()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	slog.Info("stockwear stopped properly")
}
