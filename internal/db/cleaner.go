package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const purgeDeletedCrops = `
DELETE FROM crops
 WHERE deleted_at IS NOT NULL
   AND deleted_at < $1`

// PurgeDeletedCrops permanently removes crops soft-deleted before cutoff and
// reports how many rows went away.
func PurgeDeletedCrops(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, purgeDeletedCrops, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge deleted crops: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge deleted crops: %w", err)
	}
	return rows, nil
}

// StartSoftDeleteCleaner runs PurgeDeletedCrops every interval for crops
// deleted more than retention ago, until ctx is done. A non-positive
// interval leaves the cleaner off.
func StartSoftDeleteCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	if interval <= 0 {
		log.Error("soft-delete cleaner not started", zap.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed, err := PurgeDeletedCrops(ctx, db, now.Add(-retention))
				if err != nil {
					log.Error("failed to purge deleted crops", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("purged deleted crops",
						zap.Int64("removed", removed),
						zap.Duration("retention", retention),
					)
				}
			}
		}
	}()
}
