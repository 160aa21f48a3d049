package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// Uploader is the narrow blob surface the archiver needs.
type Uploader interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}

// SnapshotSource provides the aged snapshots to archive, oldest first. The
// primary SnapshotStore satisfies it.
type SnapshotSource interface {
	ListBetween(ctx context.Context, after, before time.Time, limit int) ([]domain.PortfolioSnapshot, error)
}

// Archiver copies aged portfolio snapshots to cold storage as JSONL. It never
// deletes rows from the primary store; pruning after a verified archive is a
// separate operator step. A high-water mark tracks the newest snapshot time
// already copied so successive sweeps advance through the backlog instead of
// re-reading the same oldest rows. The mark is in-memory: after a restart the
// first sweep re-uploads already-archived rows, but the object keys derive
// from the snapshot times, so it overwrites the same objects with the same
// content.
type Archiver struct {
	uploader  Uploader
	snapshots SnapshotSource
	batchSize int
	logger    *slog.Logger

	mu        sync.Mutex
	highWater time.Time
}

// NewArchiver builds an Archiver. batchSize caps the rows read per run; zero
// means unbounded.
func NewArchiver(uploader Uploader, snapshots SnapshotSource, batchSize int, logger *slog.Logger) *Archiver {
	return &Archiver{
		uploader:  uploader,
		snapshots: snapshots,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSnapshots uploads snapshots older than the cutoff that have not been
// archived yet, one object per calendar month of snapshot time, and returns
// the count archived. The mark advances after each uploaded month, so a
// failure mid-sweep never re-archives the months that already made it out.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	a.mu.Lock()
	after := a.highWater
	a.mu.Unlock()

	snaps, err := a.snapshots.ListBetween(ctx, after, cutoff, a.batchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	var archived int64
	for _, group := range groupByMonth(snaps) {
		buf, err := marshalJSONL(group)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
		}

		key := archiveKey(group)
		if err := a.uploader.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return archived, fmt.Errorf("s3blob: archive snapshots upload %s: %w", key, err)
		}

		last := group[len(group)-1].SnapshotTime
		a.mu.Lock()
		if last.After(a.highWater) {
			a.highWater = last
		}
		a.mu.Unlock()

		archived += int64(len(group))
		a.logger.InfoContext(ctx, "snapshots archived",
			slog.String("key", key),
			slog.Int("count", len(group)),
			slog.Time("through", last),
		)
	}

	return archived, nil
}

// groupByMonth splits a time-ordered snapshot slice into consecutive runs
// sharing a calendar month.
func groupByMonth(snaps []domain.PortfolioSnapshot) [][]domain.PortfolioSnapshot {
	var groups [][]domain.PortfolioSnapshot
	start := 0
	for i := 1; i <= len(snaps); i++ {
		if i == len(snaps) || monthOf(snaps[i].SnapshotTime) != monthOf(snaps[start].SnapshotTime) {
			groups = append(groups, snaps[start:i])
			start = i
		}
	}
	return groups
}

func monthOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// archiveKey partitions objects by the snapshots' own month and names each
// batch after its first snapshot time, so re-running a sweep over the same
// rows rewrites the same object.
func archiveKey(group []domain.PortfolioSnapshot) string {
	first := group[0].SnapshotTime.UTC()
	return fmt.Sprintf("archive/snapshots/%s/%s.jsonl", monthOf(first), first.Format("20060102T150405Z"))
}

// marshalJSONL writes one compact JSON object per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
