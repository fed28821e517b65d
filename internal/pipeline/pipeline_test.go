package pipeline

import (
	"context"
	"errors"
	"testing"

	"hoppscotch-backup/internal/model"
)

type stubAuth struct {
	called bool
	err    error
}

func (s *stubAuth) Validate(ctx context.Context) error {
	s.called = true
	return s.err
}

type stubExporter struct {
	called bool
	err    error
	files  []string
}

func (s *stubExporter) Export(ctx context.Context, run *model.ExportRun) error {
	s.called = true
	if s.err != nil {
		return s.err
	}
	run.TeamID = "team-1"
	run.ExportedFiles = append(run.ExportedFiles, s.files...)
	return nil
}

type stubPublisher struct {
	called bool
	err    error
}

func (s *stubPublisher) Publish(ctx context.Context, run *model.ExportRun) error {
	s.called = true
	return s.err
}

type nopEvents struct{}

func (nopEvents) StageStarted(string)           {}
func (nopEvents) StageSucceeded(string)         {}
func (nopEvents) FileWritten(string)            {}
func (nopEvents) FileSkipped(string, error)     {}
func (nopEvents) RunAborted(string, error)      {}
func (nopEvents) RunCompleted(*model.ExportRun) {}

func newTestPipeline(a *stubAuth, e *stubExporter, p *stubPublisher) *Pipeline {
	return New("/repo", "backups", a, e, p, nopEvents{})
}

func TestRunSuccessReachesDone(t *testing.T) {
	a := &stubAuth{}
	e := &stubExporter{files: []string{"/repo/backups/x/agg.json"}}
	pub := &stubPublisher{}
	pipe := newTestPipeline(a, e, pub)

	run, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if pipe.State() != StateDone {
		t.Errorf("State() = %v, want done", pipe.State())
	}
	if !a.called || !e.called || !pub.called {
		t.Errorf("stage calls auth=%v export=%v publish=%v, want all", a.called, e.called, pub.called)
	}
	if run.Timestamp == "" || run.BranchName() != "backup/"+run.Timestamp {
		t.Errorf("run naming broken: timestamp=%q branch=%q", run.Timestamp, run.BranchName())
	}
	if len(run.ExportedFiles) != 1 {
		t.Errorf("ExportedFiles = %v", run.ExportedFiles)
	}
}

func TestRunAbortsOnAuthFailure(t *testing.T) {
	authErr := errors.New("bad token")
	a := &stubAuth{err: authErr}
	e := &stubExporter{}
	pub := &stubPublisher{}
	pipe := newTestPipeline(a, e, pub)

	_, err := pipe.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail when auth fails")
	}
	if pipe.State() != StateAborted {
		t.Errorf("State() = %v, want aborted", pipe.State())
	}
	if e.called || pub.called {
		t.Errorf("later stages ran after auth failure: export=%v publish=%v", e.called, pub.called)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageAuth {
		t.Errorf("error = %v, want StageError for %s", err, StageAuth)
	}
	if !errors.Is(err, authErr) {
		t.Error("underlying error must pass through unchanged")
	}
}

func TestRunAbortsOnExportFailure(t *testing.T) {
	a := &stubAuth{}
	e := &stubExporter{err: errors.New("export broke")}
	pub := &stubPublisher{}
	pipe := newTestPipeline(a, e, pub)

	_, err := pipe.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail when export fails")
	}
	if pub.called {
		t.Error("publisher must not run after export failure")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageExport {
		t.Errorf("error = %v, want StageError for %s", err, StageExport)
	}
}

func TestRunDoesNotRollBackOnPublishFailure(t *testing.T) {
	a := &stubAuth{}
	e := &stubExporter{files: []string{"/repo/backups/x/agg.json"}}
	pub := &stubPublisher{err: errors.New("push rejected")}
	pipe := newTestPipeline(a, e, pub)

	run, err := pipe.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail when publish fails")
	}
	if pipe.State() != StateAborted {
		t.Errorf("State() = %v, want aborted", pipe.State())
	}
	// Exported files stay on the returned run; nothing deletes them.
	if len(run.ExportedFiles) != 1 {
		t.Errorf("ExportedFiles = %v, want files preserved", run.ExportedFiles)
	}
}

func TestCheckAuthNeverTouchesOtherStages(t *testing.T) {
	tests := []struct {
		name    string
		authErr error
	}{
		{name: "auth succeeds"},
		{name: "auth fails", authErr: errors.New("nope")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAuth{err: tt.authErr}
			e := &stubExporter{}
			pub := &stubPublisher{}
			pipe := newTestPipeline(a, e, pub)

			err := pipe.CheckAuth(context.Background())
			if (err != nil) != (tt.authErr != nil) {
				t.Fatalf("CheckAuth() error = %v", err)
			}
			if e.called || pub.called {
				t.Errorf("CheckAuth touched exporter=%v publisher=%v", e.called, pub.called)
			}
		})
	}
}
