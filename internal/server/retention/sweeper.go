// Package retention hard-deletes destroyed secrets. Burned records and
// records expired longer than the retention window ago are removed
// together with their audit rows, and their external blobs are
// collected.
package retention

import (
	"context"
	"time"

	"github.com/voidnote/voidnote/internal/logging"
	"github.com/voidnote/voidnote/internal/server/blob"
	"github.com/voidnote/voidnote/internal/server/repositories/secrets"
)

type Sweeper struct {
	repo     secrets.Repository
	blobs    blob.Store
	logger   logging.Logger
	window   time.Duration
	interval time.Duration
}

func NewSweeper(repo secrets.Repository, blobs blob.Store, logger logging.Logger, window, interval time.Duration) *Sweeper {
	return &Sweeper{
		repo:     repo,
		blobs:    blobs,
		logger:   logger.With("module", "retention"),
		window:   window,
		interval: interval,
	}
}

// Run sweeps on a ticker until the context is cancelled. One failed
// sweep never stops the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// Sweep performs one pass: delete destroyed records, then collect their
// blobs. A blob that fails to delete is logged; bucket lifecycle rules
// clean up leftovers.
func (s *Sweeper) Sweep(ctx context.Context) error {
	destroyed, err := s.repo.DeleteDestroyed(ctx, time.Now(), s.window)
	if err != nil {
		return err
	}
	if len(destroyed) == 0 {
		return nil
	}

	s.logger.Info(ctx, "swept destroyed secrets", "count", len(destroyed))

	for _, d := range destroyed {
		if d.FileRef == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, d.FileRef); err != nil {
			s.logger.Warn(ctx, "blob delete failed",
				"secret_id", d.ID, "ref", d.FileRef, "error", err)
		}
	}
	return nil
}
