// Package vcs publishes the site's working tree by driving the git command
// line tool.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jwstascii/jwstascii/logging"
)

var (
	ErrGitFailed = errors.New("git command failed")
	ErrNoBranch  = errors.New("no branch checked out")
)

// Runner runs git with args in dir. env is added to the process
// environment.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, args ...string) ([]byte, error)
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct{}

// Run runs git and returns its combined output.
func (ExecRunner) Run(ctx context.Context, dir string, env []string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%w: git %s: %v: %s", ErrGitFailed, strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	return out, nil
}

// SSHCommand returns the GIT_SSH_COMMAND that authenticates with the key
// at keyPath.
func SSHCommand(keyPath string) string {
	return fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=no", keyPath)
}

// Repo is a git working tree.
type Repo struct {
	dir    string
	branch string
	env    []string
	runner Runner
	logger *slog.Logger
}

// Option configures a Repo.
type Option func(*Repo)

// WithRunner replaces the git runner.
func WithRunner(r Runner) Option {
	return func(repo *Repo) { repo.runner = r }
}

// WithSSHKey authenticates remote operations with a private key file.
func WithSSHKey(keyPath string) Option {
	return func(repo *Repo) {
		if keyPath != "" {
			repo.env = append(repo.env, "GIT_SSH_COMMAND="+SSHCommand(keyPath))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(repo *Repo) { repo.logger = logger }
}

// Open returns the working tree at dir.
func Open(dir string, opts ...Option) *Repo {
	repo := &Repo{dir: dir, runner: ExecRunner{}}
	for _, opt := range opts {
		opt(repo)
	}
	repo.logger = logging.Default(repo.logger).With("component", "git", "dir", dir)
	return repo
}

// Clone clones url into dir and returns the new working tree.
func Clone(ctx context.Context, url, dir string, opts ...Option) (*Repo, error) {
	repo := Open(dir, opts...)

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clone directory: %w", err)
	}
	if _, err := repo.runner.Run(ctx, parent, repo.env, "clone", url, dir); err != nil {
		return nil, err
	}

	repo.logger.Info("repository cloned", "url", url)
	return repo, nil
}

// Dir returns the root of the working tree.
func (r *Repo) Dir() string {
	return r.dir
}

// Branch returns the branch last checked out through Checkout.
func (r *Repo) Branch() string {
	return r.branch
}

func (r *Repo) git(ctx context.Context, args ...string) ([]byte, error) {
	return r.runner.Run(ctx, r.dir, r.env, args...)
}

// Checkout switches the working tree to branch.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	if _, err := r.git(ctx, "checkout", branch); err != nil {
		return err
	}
	r.branch = branch
	return nil
}

// Reset discards every local change and untracked file, leaving the
// checked out branch at its state on remote.
func (r *Repo) Reset(ctx context.Context, remote string) error {
	if r.branch == "" {
		return ErrNoBranch
	}

	steps := [][]string{
		{"fetch", remote, r.branch},
		{"reset", "--hard", remote + "/" + r.branch},
		{"clean", "-fd"},
	}
	for _, args := range steps {
		if _, err := r.git(ctx, args...); err != nil {
			return err
		}
	}

	r.logger.Info("working tree reset", "remote", remote, "branch", r.branch)
	return nil
}

// HasChanges reports whether the working tree has modified or untracked
// files.
func (r *Repo) HasChanges(ctx context.Context) (bool, error) {
	out, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// AddAll stages every modified and untracked file.
func (r *Repo) AddAll(ctx context.Context) error {
	_, err := r.git(ctx, "add", "--all")
	return err
}

// Commit commits the staged files as author.
func (r *Repo) Commit(ctx context.Context, message, author, email string) error {
	_, err := r.git(ctx,
		"-c", "user.name="+author,
		"-c", "user.email="+email,
		"commit",
		"-m", message,
		"--author", fmt.Sprintf("%s <%s>", author, email))
	if err != nil {
		return err
	}

	r.logger.Info("changes committed", "message", message)
	return nil
}

// Push pushes the checked out branch to remote.
func (r *Repo) Push(ctx context.Context, remote string) error {
	if r.branch == "" {
		return ErrNoBranch
	}
	if _, err := r.git(ctx, "push", remote, r.branch); err != nil {
		return err
	}

	r.logger.Info("changes pushed", "remote", remote, "branch", r.branch)
	return nil
}
