package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hoppscotch-backup/internal/logger"
	"hoppscotch-backup/internal/mirror"
	"hoppscotch-backup/internal/model"

	"go.uber.org/zap"
)

// MirrorStore is the subset of the S3 mirror that pruning needs.
type MirrorStore interface {
	ListObjects(ctx context.Context) ([]mirror.ObjectMeta, error)
	DeleteObject(ctx context.Context, key string) error
}

// Runner prunes timestamped backup directories (and mirrored objects)
// older than the retention period. It only touches the working tree;
// git history is never rewritten.
type Runner struct {
	backupRoot string
	retention  time.Duration
	dryRun     bool
	store      MirrorStore
}

// NewRunner creates a Runner for the directory holding the
// timestamped backup directories. store may be nil when no mirror is
// configured.
func NewRunner(backupRoot string, retention time.Duration, dryRun bool, store MirrorStore) *Runner {
	return &Runner{
		backupRoot: backupRoot,
		retention:  retention,
		dryRun:     dryRun,
		store:      store,
	}
}

// Run performs one pruning pass. A non-positive retention disables it.
func (r *Runner) Run(ctx context.Context) error {
	if r.retention <= 0 {
		logger.Log.Debug("Retention pruning disabled")
		return nil
	}

	cutoff := time.Now().Add(-r.retention)
	logger.Log.Info("Starting retention pruning",
		zap.String("backupRoot", r.backupRoot),
		zap.Duration("retention", r.retention),
		zap.Time("cutoff", cutoff),
		zap.Bool("dryRun", r.dryRun),
	)

	var failures []string
	pruned := r.pruneLocal(ctx, cutoff, &failures)
	mirrored := r.pruneMirror(ctx, cutoff, &failures)

	logger.Log.Info("Retention pruning finished",
		zap.Int("directoriesPruned", pruned),
		zap.Int("mirroredObjectsPruned", mirrored),
		zap.Int("failures", len(failures)),
	)
	if len(failures) > 0 {
		return fmt.Errorf("retention pruning had %d failures: %v", len(failures), failures)
	}
	return nil
}

// pruneLocal removes timestamp-named directories older than the
// cutoff. Directories whose names do not parse as run timestamps are
// left alone.
func (r *Runner) pruneLocal(ctx context.Context, cutoff time.Time, failures *[]string) int {
	entries, err := os.ReadDir(r.backupRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		*failures = append(*failures, fmt.Sprintf("read %s: %v", r.backupRoot, err))
		return 0
	}

	pruned := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			*failures = append(*failures, ctx.Err().Error())
			return pruned
		}
		if !entry.IsDir() {
			continue
		}
		runTime, err := time.ParseInLocation(model.TimestampLayout, entry.Name(), time.Local)
		if err != nil {
			logger.Log.Debug("Skipping non-timestamp directory", zap.String("name", entry.Name()))
			continue
		}
		if !runTime.Before(cutoff) {
			continue
		}

		dir := filepath.Join(r.backupRoot, entry.Name())
		if r.dryRun {
			logger.Log.Info("[DryRun] Would prune backup directory", zap.String("dir", dir))
			pruned++
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logger.Log.Error("Failed to prune backup directory", zap.String("dir", dir), zap.Error(err))
			*failures = append(*failures, fmt.Sprintf("remove %s: %v", dir, err))
			continue
		}
		logger.Log.Info("Pruned backup directory", zap.String("dir", dir))
		pruned++
	}
	return pruned
}

func (r *Runner) pruneMirror(ctx context.Context, cutoff time.Time, failures *[]string) int {
	if r.store == nil {
		return 0
	}

	objects, err := r.store.ListObjects(ctx)
	if err != nil {
		*failures = append(*failures, fmt.Sprintf("list mirror: %v", err))
		return 0
	}

	pruned := 0
	for _, obj := range objects {
		if ctx.Err() != nil {
			*failures = append(*failures, ctx.Err().Error())
			return pruned
		}
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if r.dryRun {
			logger.Log.Info("[DryRun] Would prune mirrored object", zap.String("key", obj.Key))
			pruned++
			continue
		}
		if err := r.store.DeleteObject(ctx, obj.Key); err != nil {
			*failures = append(*failures, fmt.Sprintf("delete %s: %v", obj.Key, err))
			continue
		}
		pruned++
	}
	return pruned
}
