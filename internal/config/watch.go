package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchRooms loads the room catalog once, hands it to onUpdate, and then
// polls path every interval. A changed file that fails validation is logged
// and skipped; onUpdate only ever sees valid catalogs.
func WatchRooms(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*RoomsConfig)) error {
	if path == "" {
		path = "configs/rooms.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger = logger.With().Str("component", "catalog_watch").Str("path", path).Logger()

	digest, err := fileDigest(path)
	if err != nil {
		return err
	}
	cfg, err := LoadRoomsConfig(path)
	if err != nil {
		return err
	}
	onUpdate(cfg)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			next, err := fileDigest(path)
			if err != nil {
				logger.Warn().Err(err).Msg("Room catalog unreadable")
				continue
			}
			if bytes.Equal(next, digest) {
				continue
			}
			digest = next

			cfg, err := LoadRoomsConfig(path)
			if err != nil {
				logger.Error().Err(err).Msg("Room catalog changed but is invalid; keeping previous")
				continue
			}
			logger.Info().Int("rooms", len(cfg.Rooms)).Msg("Room catalog reloaded")
			onUpdate(cfg)
		}
	}()

	return nil
}

func fileDigest(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}
