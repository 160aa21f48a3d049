package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/hedgecore/internal/notify"
)

// archiveInterval is how often full mode sweeps aged snapshots to cold
// storage.
const archiveInterval = 24 * time.Hour

// TrackMode runs only the position tracking loop: periodic price fan-out and
// PnL refresh for every active position.
func (a *App) TrackMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting track mode")

	deps.Tracker.Start(ctx)
	defer deps.Tracker.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// FullMode runs the tracker plus the periodic snapshot loop for the
// configured wallets and, when S3 is enabled, daily snapshot archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.Int("snapshot_wallets", len(a.cfg.Snapshot.Wallets)),
	)

	deps.Tracker.Start(ctx)
	defer deps.Tracker.Stop()

	g, ctx := errgroup.WithContext(ctx)

	// Snapshot loop. The per-wallet throttle inside the portfolio service
	// makes an early or duplicate pass harmless.
	if len(a.cfg.Snapshot.Wallets) > 0 {
		g.Go(func() error {
			interval := time.Duration(a.cfg.Snapshot.LoopIntervalSec) * time.Second
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			a.snapshotPass(ctx, deps)
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					a.snapshotPass(ctx, deps)
				}
			}
		})
	}

	// Archival sweep.
	if deps.Archiver != nil {
		g.Go(func() error {
			ticker := time.NewTicker(archiveInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)
					count, err := deps.Archiver.ArchiveSnapshots(ctx, cutoff)
					if err != nil {
						a.logger.ErrorContext(ctx, "snapshot archival failed",
							slog.String("error", err.Error()),
						)
						continue
					}
					if count > 0 {
						a.logger.InfoContext(ctx, "snapshot archival complete",
							slog.Int64("archived", count),
						)
						if deps.Notifier != nil {
							msg := fmt.Sprintf("%d snapshots copied to cold storage", count)
							if nerr := deps.Notifier.Notify(ctx, notify.EventSnapshotArchived, "Snapshots archived", msg); nerr != nil {
								a.logger.WarnContext(ctx, "archival notification failed",
									slog.String("error", nerr.Error()),
								)
							}
						}
					}
				}
			}
		})
	}

	if len(a.cfg.Snapshot.Wallets) == 0 && deps.Archiver == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return g.Wait()
}

// snapshotPass records one snapshot per configured wallet. Balances are not
// tracked by this core, so each snapshot carries the open-hedge summary only.
func (a *App) snapshotPass(ctx context.Context, deps *Dependencies) {
	for _, wallet := range a.cfg.Snapshot.Wallets {
		recorded, err := deps.Portfolio.RecordSnapshot(ctx, wallet, nil, nil, nil)
		if err != nil {
			a.logger.WarnContext(ctx, "snapshot failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !recorded {
			a.logger.DebugContext(ctx, "snapshot throttled",
				slog.String("wallet", wallet),
			)
		}
	}
}
