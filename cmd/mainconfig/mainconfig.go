// Package mainconfig holds wiring shared by the binaries.
package mainconfig

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/innovar-labs/wavebox-widget/internal/config"
	"github.com/innovar-labs/wavebox-widget/internal/store"
	"github.com/innovar-labs/wavebox-widget/pkg/logging"
)

// NewMarkerStore builds the marker store selected by WIDGET_MARKER_BACKEND
// (memory, redis or sqlite). The returned cleanup releases the backing
// resources and is safe to call once.
func NewMarkerStore(cfg *config.Config, logger *logging.Logger) (store.MarkerStore, func(), error) {
	switch cfg.MarkerBackend {
	case "", "memory":
		return store.NewMemoryStore(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		visitorID := uuid.NewString()
		logger.Info("using redis marker store", "addr", cfg.RedisAddr, "visitor_id", visitorID)
		s := store.NewRedisStore(client, cfg.RedisNamespace, visitorID, cfg.SessionTTL)
		return s, func() { _ = client.Close() }, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.MarkerDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("mainconfig: open sqlite marker store: %w", err)
		}
		logger.Info("using sqlite marker store", "path", cfg.MarkerDBPath)
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("mainconfig: unknown marker backend %q", cfg.MarkerBackend)
	}
}
