package pipeline

import (
	"hoppscotch-backup/internal/model"

	"go.uber.org/zap"
)

// Events decouples run observability from the stages themselves: the
// pipeline and exporter report what happened, a sink decides how to
// surface it.
type Events interface {
	StageStarted(stage string)
	StageSucceeded(stage string)
	FileWritten(path string)
	FileSkipped(name string, reason error)
	RunAborted(stage string, err error)
	RunCompleted(run *model.ExportRun)
}

// LogEvents is the default sink: operator-facing status lines via zap.
type LogEvents struct {
	logger *zap.Logger
}

// NewLogEvents creates a LogEvents sink.
func NewLogEvents(logger *zap.Logger) *LogEvents {
	return &LogEvents{logger: logger}
}

func (e *LogEvents) StageStarted(stage string) {
	e.logger.Info("Stage started", zap.String("stage", stage))
}

func (e *LogEvents) StageSucceeded(stage string) {
	e.logger.Info("Stage succeeded", zap.String("stage", stage))
}

func (e *LogEvents) FileWritten(path string) {
	e.logger.Info("File written", zap.String("path", path))
}

func (e *LogEvents) FileSkipped(name string, reason error) {
	e.logger.Warn("Collection file skipped", zap.String("collection", name), zap.Error(reason))
}

func (e *LogEvents) RunAborted(stage string, err error) {
	e.logger.Error("Backup run aborted", zap.String("stage", stage), zap.Error(err))
}

func (e *LogEvents) RunCompleted(run *model.ExportRun) {
	e.logger.Info("Backup run completed",
		zap.String("timestamp", run.Timestamp),
		zap.String("branch", run.BranchName()),
		zap.Int("filesExported", len(run.ExportedFiles)),
	)
}
