package model

import (
	"path/filepath"
	"time"
)

// TimestampLayout names backup directories and branches. It is minute
// granular; two runs within the same minute share a timestamp and the
// later one replaces the earlier branch.
const TimestampLayout = "2006-01-02_15-04"

// ExportRun is the transient per-invocation state of one backup run.
// The timestamp is generated once at run start and reused for the
// directory name, the commit message and the branch name.
type ExportRun struct {
	Timestamp       string
	BackupDirectory string
	TeamID          string
	ExportedFiles   []string
}

// NewExportRun derives the run state for the given start time.
func NewExportRun(repositoryPath, backupSubPath string, start time.Time) *ExportRun {
	ts := start.Format(TimestampLayout)
	return &ExportRun{
		Timestamp:       ts,
		BackupDirectory: filepath.Join(repositoryPath, backupSubPath, ts),
	}
}

// BranchName returns the branch the run publishes to.
func (r *ExportRun) BranchName() string {
	return "backup/" + r.Timestamp
}

// CommitMessage returns the commit message for the run.
func (r *ExportRun) CommitMessage() string {
	return "Backup collections for " + r.Timestamp
}

// RunReport summarizes a finished (or aborted) run for notification.
type RunReport struct {
	Workspace       string  `json:"workspace"`
	TeamID          string  `json:"team_id,omitempty"`
	RunTimestamp    string  `json:"run_timestamp,omitempty"`
	Branch          string  `json:"branch,omitempty"`
	FilesWritten    int     `json:"files_written"`
	Success         bool    `json:"success"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	CompletedAt     string  `json:"completed_at_utc"`
}
