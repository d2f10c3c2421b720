package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/programhub/apiserver/config"
	"github.com/programhub/apiserver/internal/cache"
	"github.com/programhub/apiserver/internal/db"
	"github.com/programhub/apiserver/internal/mq"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/internal/storage"
	"github.com/programhub/apiserver/internal/store"
	"github.com/programhub/apiserver/internal/token"
)

const shutdownTimeout = 15 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     *slog.Logger
	closers    []io.Closer
}

// New connects to every configured backend and wires the router. Optional
// backends (cache, broker, snapshot storage) that fail to connect are
// logged and left out.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewService(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &Server{db: dbConn, logger: logger}

	var publisher services.ActivityPublisher
	backend, err := mq.NewBackend(ctx, cfg.Broker)
	switch {
	case err != nil:
		logger.Warn("activity broker disabled", "broker", cfg.Broker.Kind, "error", err)
	case backend != nil:
		feed := mq.NewActivityFeed(backend, cfg.Broker.Topic)
		publisher = feed
		s.closers = append(s.closers, feed)
		logger.Info("activity broker enabled", "broker", cfg.Broker.Kind, "topic", cfg.Broker.Topic)
	}

	var programCache services.ActiveProgramCache
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("active program cache disabled", "error", err)
		} else {
			programCache = redisCache
			s.closers = append(s.closers, redisCache)
			logger.Info("active program cache enabled", "ttl", cfg.Cache.TTL)
		}
	}

	var snapshots services.SnapshotPublisher
	objects, err := storage.NewBackend(ctx, cfg.Snapshot)
	switch {
	case err != nil:
		logger.Warn("program snapshots disabled", "storage", cfg.Snapshot.Kind, "error", err)
	case objects != nil:
		if err := objects.EnsureBucket(ctx); err != nil {
			logger.Warn("program snapshots disabled", "storage", cfg.Snapshot.Kind, "error", err)
			break
		}
		snapshots = storage.NewSnapshotPublisher(objects, cfg.Snapshot.Key)
		if closer, ok := objects.(io.Closer); ok {
			s.closers = append(s.closers, closer)
		}
		logger.Info("program snapshots enabled", "bucket", objects.Bucket(), "key", cfg.Snapshot.Key)
	}

	activity := services.NewActivityService(store.NewUpdateLogRepository(dbConn), publisher, logger)
	users := services.NewUserService(store.NewUserRepository(dbConn), activity)
	programs := services.NewProgramService(store.NewProgramRepository(dbConn), activity, programCache, snapshots, logger)

	s.router = NewRouter(Deps{
		Config:   cfg,
		Logger:   logger,
		DB:       dbConn,
		Tokens:   tokens,
		Users:    users,
		Programs: programs,
		Activity: activity,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.close()
	return err
}

func (s *Server) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("failed to close backend", "error", err)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
