package pipeline

import (
	"context"
	"time"

	"hoppscotch-backup/internal/model"
)

// State of a pipeline invocation. Aborted is absorbing: the first
// failing stage moves the run there and later stages never start.
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateExporting      State = "exporting"
	StatePublishing     State = "publishing"
	StateDone           State = "done"
	StateAborted        State = "aborted"
)

// Stage names used for error attribution and events.
const (
	StageAuth    = "authentication"
	StageExport  = "export"
	StagePublish = "publish"
)

// StageError attributes a component failure to the stage it occurred
// in. The underlying error is passed through unchanged.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + " stage failed: " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Authenticator verifies the bearer credential.
type Authenticator interface {
	Validate(ctx context.Context) error
}

// Exporter produces the run's backup directory.
type Exporter interface {
	Export(ctx context.Context, run *model.ExportRun) error
}

// Publisher commits and pushes the run's backup directory.
type Publisher interface {
	Publish(ctx context.Context, run *model.ExportRun) error
}

// Pipeline sequences authentication, export and publish for one run.
// It is not safe for concurrent invocations against the same
// repository path; the process runs at most one at a time.
type Pipeline struct {
	repositoryPath string
	backupSubPath  string

	auth      Authenticator
	exporter  Exporter
	publisher Publisher
	events    Events

	state State
	now   func() time.Time
}

// New wires the three stages together.
func New(repositoryPath, backupSubPath string, auth Authenticator, exporter Exporter, publisher Publisher, events Events) *Pipeline {
	return &Pipeline{
		repositoryPath: repositoryPath,
		backupSubPath:  backupSubPath,
		auth:           auth,
		exporter:       exporter,
		publisher:      publisher,
		events:         events,
		state:          StateIdle,
		now:            time.Now,
	}
}

// State returns the state the last invocation reached.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes the full backup pipeline. The returned ExportRun
// carries the timestamp and file list even when a later stage fails;
// already-written export files are never rolled back.
func (p *Pipeline) Run(ctx context.Context) (*model.ExportRun, error) {
	run := model.NewExportRun(p.repositoryPath, p.backupSubPath, p.now())

	p.state = StateAuthenticating
	p.events.StageStarted(StageAuth)
	if err := p.auth.Validate(ctx); err != nil {
		return run, p.abort(StageAuth, err)
	}
	p.events.StageSucceeded(StageAuth)

	p.state = StateExporting
	p.events.StageStarted(StageExport)
	if err := p.exporter.Export(ctx, run); err != nil {
		return run, p.abort(StageExport, err)
	}
	p.events.StageSucceeded(StageExport)

	p.state = StatePublishing
	p.events.StageStarted(StagePublish)
	if err := p.publisher.Publish(ctx, run); err != nil {
		return run, p.abort(StagePublish, err)
	}
	p.events.StageSucceeded(StagePublish)

	p.state = StateDone
	p.events.RunCompleted(run)
	return run, nil
}

// CheckAuth runs the credential probe alone. It never touches the
// exporter or the publisher.
func (p *Pipeline) CheckAuth(ctx context.Context) error {
	p.state = StateAuthenticating
	p.events.StageStarted(StageAuth)
	if err := p.auth.Validate(ctx); err != nil {
		return p.abort(StageAuth, err)
	}
	p.events.StageSucceeded(StageAuth)
	p.state = StateDone
	return nil
}

func (p *Pipeline) abort(stage string, err error) error {
	p.state = StateAborted
	p.events.RunAborted(stage, err)
	return &StageError{Stage: stage, Err: err}
}
