package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"hoppscotch-backup/internal/logger"
	"hoppscotch-backup/internal/model"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"
)

var (
	// ErrNoDefaultBranch is returned when the repository has neither a
	// main nor a master branch. Unrecoverable without manual setup.
	ErrNoDefaultBranch = errors.New("repository has neither a main nor a master branch")

	// ErrNothingToCommit is returned when the run's backup directory
	// contributed no stageable files. A backup branch with no content
	// means the export produced no usable output.
	ErrNothingToCommit = errors.New("no exported files were staged, refusing to create an empty backup commit")

	// ErrPushRejected wraps any failure to push the backup branch.
	ErrPushRejected = errors.New("push rejected by remote")
)

// Error is a fatal publish failure attributed to a pipeline stage.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return "publish failed during " + e.Stage + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

const remoteName = "origin"

// defaultBranchCandidates are tried in order when resolving the base
// branch.
var defaultBranchCandidates = []string{"main", "master"}

// Publisher commits a run's backup directory to a new branch of a
// local repository clone and pushes it to origin.
type Publisher struct {
	repositoryPath string
	username       string
	token          string

	// pushFn is replaced in tests to avoid a network remote.
	pushFn func(ctx context.Context, repo *git.Repository, branch string) error
}

// NewPublisher creates a Publisher for the clone at repositoryPath.
// The username and token authenticate the push; an empty token skips
// authentication, which only works for local remotes.
func NewPublisher(repositoryPath, username, token string) *Publisher {
	p := &Publisher{
		repositoryPath: repositoryPath,
		username:       username,
		token:          token,
	}
	p.pushFn = p.push
	return p
}

// Publish creates branch backup/{timestamp} from the default branch,
// stages every file under the run's backup directory, commits and
// pushes. A pre-existing branch with the same name is deleted first so
// same-minute re-runs replace their earlier attempt.
func (p *Publisher) Publish(ctx context.Context, run *model.ExportRun) error {
	repo, err := git.PlainOpen(p.repositoryPath)
	if err != nil {
		return &Error{Stage: "open repository", Err: fmt.Errorf("failed to open repository at %s: %w", p.repositoryPath, err)}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return &Error{Stage: "open repository", Err: fmt.Errorf("failed to open worktree: %w", err)}
	}

	defaultRef, err := resolveDefaultBranch(repo)
	if err != nil {
		return &Error{Stage: "default branch resolution", Err: err}
	}
	logger.Log.Info("Resolved default branch", zap.String("branch", defaultRef.Short()))

	// Base the new branch on the default branch, not whatever was
	// checked out last. Both checkouts below reset the worktree, which
	// removes the export files (untracked on a first run, tracked by
	// the previous backup branch on a same-minute re-run), so the
	// directory is preserved and restored once the backup branch is
	// checked out.
	preserved, err := snapshotDir(run.BackupDirectory)
	if err != nil {
		return &Error{Stage: "default branch checkout", Err: err}
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: defaultRef, Force: true}); err != nil {
		return &Error{Stage: "default branch checkout", Err: fmt.Errorf("failed to check out %s: %w", defaultRef.Short(), err)}
	}

	branchRef := plumbing.NewBranchReferenceName(run.BranchName())
	if _, err := repo.Reference(branchRef, false); err == nil {
		logger.Log.Info("Deleting existing backup branch before re-creating it", zap.String("branch", run.BranchName()))
		if err := repo.Storer.RemoveReference(branchRef); err != nil {
			return &Error{Stage: "branch deletion", Err: fmt.Errorf("failed to delete branch %s: %w", run.BranchName(), err)}
		}
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
		return &Error{Stage: "branch creation", Err: fmt.Errorf("failed to create branch %s: %w", run.BranchName(), err)}
	}
	if err := restoreDir(run.BackupDirectory, preserved); err != nil {
		return &Error{Stage: "branch creation", Err: err}
	}
	logger.Log.Info("Created backup branch", zap.String("branch", run.BranchName()))

	staged := p.stageBackupFiles(worktree, run.BackupDirectory)
	if staged == 0 {
		return &Error{Stage: "staging", Err: ErrNothingToCommit}
	}
	logger.Log.Info("Staged exported files", zap.Int("count", staged))

	signature := &object.Signature{
		Name:  p.username,
		Email: p.username + "@users.noreply.github.com",
		When:  time.Now(),
	}
	commit, err := worktree.Commit(run.CommitMessage(), &git.CommitOptions{
		Author:    signature,
		Committer: signature,
	})
	if err != nil {
		return &Error{Stage: "commit", Err: fmt.Errorf("failed to commit: %w", err)}
	}
	logger.Log.Info("Created backup commit", zap.String("hash", commit.String()), zap.String("message", run.CommitMessage()))

	if err := p.pushFn(ctx, repo, run.BranchName()); err != nil {
		return &Error{Stage: "push", Err: err}
	}
	logger.Log.Info("Pushed backup branch to remote", zap.String("remote", remoteName), zap.String("branch", run.BranchName()))
	return nil
}

// snapshotDir reads every file under dir into memory, keyed by path
// relative to dir. A missing directory yields an empty snapshot.
func snapshotDir(dir string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = data
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to snapshot %s: %w", dir, err)
	}
	return files, nil
}

func restoreDir(dir string, files map[string][]byte) error {
	for rel, data := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to restore %s: %w", path, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to restore %s: %w", path, err)
		}
	}
	return nil
}

// resolveDefaultBranch tries main then master.
func resolveDefaultBranch(repo *git.Repository) (plumbing.ReferenceName, error) {
	for _, name := range defaultBranchCandidates {
		ref := plumbing.NewBranchReferenceName(name)
		if _, err := repo.Reference(ref, true); err == nil {
			return ref, nil
		}
	}
	return "", ErrNoDefaultBranch
}

// stageBackupFiles adds every file under backupDir to the index, with
// paths relative to the repository root. Individual failures are
// logged and skipped; the caller decides what an overall count of zero
// means.
func (p *Publisher) stageBackupFiles(worktree *git.Worktree, backupDir string) int {
	staged := 0
	err := filepath.WalkDir(backupDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Log.Warn("Cannot access path while staging, skipping", zap.String("path", path), zap.Error(walkErr))
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(p.repositoryPath, path)
		if err != nil {
			logger.Log.Warn("Cannot relativize path, skipping", zap.String("path", path), zap.Error(err))
			return nil
		}
		if _, err := worktree.Add(filepath.ToSlash(rel)); err != nil {
			logger.Log.Warn("Failed to stage file, skipping", zap.String("path", rel), zap.Error(err))
			return nil
		}
		staged++
		return nil
	})
	if err != nil {
		logger.Log.Warn("Walk over backup directory ended early", zap.String("dir", backupDir), zap.Error(err))
	}
	return staged
}

func (p *Publisher) push(ctx context.Context, repo *git.Repository, branch string) error {
	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	opts := &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}
	if p.token != "" {
		opts.Auth = &githttp.BasicAuth{Username: p.username, Password: p.token}
	}

	err := repo.PushContext(ctx, opts)
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrPushRejected, err)
}
