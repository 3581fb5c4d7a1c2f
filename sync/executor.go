package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/internal/telemetry"
)

// RemoteWriter performs the "external process" half of execution,
// mirroring how the archive storage provider shells out rather than
// linking a VCS client directly. Implementations invoke push/pull/delete
// via argv only, never a shell.
type RemoteWriter interface {
	ReadRemote(ctx context.Context, org, project, path string) ([]byte, error)
	WriteRemote(ctx context.Context, org, project, path string, content []byte) error
	DeleteRemote(ctx context.Context, org, project, path string) error
}

// SubprocessRemoteWriter implements RemoteWriter by invoking a configured
// helper binary as an argv array, as the archive provider does with its own
// helper (whose single verb is "file read"): this helper's command line is
// "<helper> <verb> --org <org> --project <project> --path <path>" with
// content piped over stdin for write, and returned over stdout for read.
type SubprocessRemoteWriter struct {
	Helper     string
	runCommand func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// NewSubprocessRemoteWriter wraps a helper binary path.
func NewSubprocessRemoteWriter(helper string) *SubprocessRemoteWriter {
	w := &SubprocessRemoteWriter{Helper: helper}
	w.runCommand = w.defaultRunCommand
	return w
}

func (w *SubprocessRemoteWriter) defaultRunCommand(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (w *SubprocessRemoteWriter) ReadRemote(ctx context.Context, org, project, path string) ([]byte, error) {
	out, err := w.runCommand(ctx, nil, w.Helper, "pull", "--org", org, "--project", project, "--path", path)
	if err != nil {
		return nil, codexerr.Wrap(codexerr.CodeTransport, "remote pull helper failed", err)
	}
	return out, nil
}

func (w *SubprocessRemoteWriter) WriteRemote(ctx context.Context, org, project, path string, content []byte) error {
	_, err := w.runCommand(ctx, content, w.Helper, "push", "--org", org, "--project", project, "--path", path)
	if err != nil {
		return codexerr.Wrap(codexerr.CodeTransport, "remote push helper failed", err)
	}
	return nil
}

func (w *SubprocessRemoteWriter) DeleteRemote(ctx context.Context, org, project, path string) error {
	_, err := w.runCommand(ctx, nil, w.Helper, "delete", "--org", org, "--project", project, "--path", path)
	if err != nil {
		return codexerr.Wrap(codexerr.CodeTransport, "remote delete helper failed", err)
	}
	return nil
}

// OpError pairs a failed operation with its error, recorded against the
// path so the run can continue past it.
type OpError struct {
	Path string
	Err  error
}

// Result is the executor's outcome: which operations ran, which failed,
// and whether the overall run is a partial success.
type Result struct {
	RunID          string
	Applied        []Operation
	Errors         []OpError
	PartialSuccess bool
}

// runLocks serializes executions per working directory within this
// process: a concurrent sync against the same working tree either waits
// (blocking) or is rejected with SyncInProgress, never interleaved.
var runLocks sync.Map // map[string]*sync.Mutex

func lockFor(workingDir string) *sync.Mutex {
	v, _ := runLocks.LoadOrStore(workingDir, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Executor applies a Plan's operations against a working directory and a
// remote writer, then persists the updated manifest.
type Executor struct {
	WorkingDir   string
	ManifestPath string
	Remote       RemoteWriter
}

// NewExecutor builds an Executor rooted at workingDir, persisting the
// manifest at manifestPath.
func NewExecutor(workingDir, manifestPath string, remote RemoteWriter) *Executor {
	return &Executor{WorkingDir: workingDir, ManifestPath: manifestPath, Remote: remote}
}

// Execute applies plan in order against manifest. If blocking is true, a
// concurrent execution on the same working directory waits for the first
// to finish; otherwise it fails immediately with SyncInProgress.
func (e *Executor) Execute(ctx context.Context, plan *Plan, manifest *Manifest, blocking bool) (Result, error) {
	mu := lockFor(e.WorkingDir)
	if blocking {
		mu.Lock()
	} else if !mu.TryLock() {
		return Result{}, codexerr.New(codexerr.CodeSyncInProgress, "a sync is already running against this working directory")
	}
	defer mu.Unlock()

	result := Result{RunID: uuid.NewString()}
	log := telemetry.WithComponent("sync-executor").WithField("runId", result.RunID)

	for _, op := range plan.Operations {
		if op.Kind == OpSkip || op.Kind == OpConflict {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, OpError{Path: op.Path, Err: err})
			break
		}

		if err := e.apply(ctx, plan.Org, plan.Project, op); err != nil {
			log.WithField("path", op.Path).WithError(err).Warn("sync operation failed")
			result.Errors = append(result.Errors, OpError{Path: op.Path, Err: err})
			continue
		}

		e.recordManifest(manifest, plan.Org, plan.Project, op)
		result.Applied = append(result.Applied, op)
	}

	result.PartialSuccess = len(result.Errors) > 0

	// The manifest is written once, after every operation has been
	// attempted, regardless of partial failure: a crash before this point
	// leaves the tree ahead of the manifest, which the next planning pass
	// reconciles.
	if err := manifest.Save(e.ManifestPath); err != nil {
		return result, err
	}

	return result, nil
}

func (e *Executor) apply(ctx context.Context, org, project string, op Operation) error {
	localPath := filepath.Join(e.WorkingDir, filepath.FromSlash(op.Path))

	switch op.Kind {
	case OpCreateRemote, OpUpdateRemote:
		content, err := os.ReadFile(localPath)
		if err != nil {
			return codexerr.Wrap(codexerr.CodeTransport, "reading local file for push", err)
		}
		return e.Remote.WriteRemote(ctx, org, project, op.Path, content)

	case OpCreateLocal, OpUpdateLocal:
		content, err := e.Remote.ReadRemote(ctx, org, project, op.Path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return codexerr.Wrap(codexerr.CodeTransport, "creating local directory", err)
		}
		return os.WriteFile(localPath, content, 0o644)

	case OpDeleteRemote:
		return e.Remote.DeleteRemote(ctx, org, project, op.Path)

	case OpDeleteLocal:
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			return codexerr.Wrap(codexerr.CodeTransport, "deleting local file", err)
		}
		return nil

	default:
		return nil
	}
}

func (e *Executor) recordManifest(manifest *Manifest, org, project string, op Operation) {
	if op.Kind == OpDeleteLocal || op.Kind == OpDeleteRemote {
		manifest.Delete(org, project, op.Path)
		return
	}

	direction := DirectionToShared
	if op.Kind == OpCreateLocal || op.Kind == OpUpdateLocal {
		direction = DirectionFromShared
	}

	manifest.Put(Entry{
		Org:          org,
		Project:      project,
		Path:         op.Path,
		Hash:         op.Hash,
		Size:         op.Size,
		LastSyncedAt: time.Now(),
		Direction:    direction,
	})
}

// Summarize renders a human-readable one-line-per-operation plan report,
// byte counts formatted with go-humanize.
func Summarize(plan *Plan) string {
	lines := make([]string, 0, len(plan.Operations)+1)
	lines = append(lines, fmt.Sprintf("plan for %s/%s: %d operation(s), %s, est. %s",
		plan.Org, plan.Project, len(plan.Operations), humanize.Bytes(uint64(plan.TotalBytes)), plan.EstimatedDuration))
	for _, op := range plan.Operations {
		if op.Kind == OpSkip {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %-14s %s (%s)", op.Kind, op.Path, humanize.Bytes(uint64(op.Size))))
	}
	result := ""
	for i, l := range lines {
		if i > 0 {
			result += "\n"
		}
		result += l
	}
	return result
}
