package sync

import (
	"time"

	"github.com/fractary/codex/internal/globmatch"
)

// OpKind is the single operation the planner assigns to a candidate
// file.
type OpKind string

const (
	OpCreateRemote OpKind = "create-remote"
	OpCreateLocal  OpKind = "create-local"
	OpSkip         OpKind = "skip"
	OpUpdateRemote OpKind = "update-remote"
	OpUpdateLocal  OpKind = "update-local"
	OpConflict     OpKind = "conflict"
	OpDeleteRemote OpKind = "delete-remote"
	OpDeleteLocal  OpKind = "delete-local"
)

// ConflictPolicy resolves a candidate whose local and remote copies have
// both diverged from the manifest.
type ConflictPolicy string

const (
	PolicyLocalWins  ConflictPolicy = "local-wins"
	PolicyRemoteWins ConflictPolicy = "remote-wins"
	PolicyNewest     ConflictPolicy = "newest"
	PolicyPrompt     ConflictPolicy = "prompt"
)

// FileState is one side (local or remote) of a candidate file's current
// observed state.
type FileState struct {
	Exists  bool
	Hash    string
	Size    int64
	ModTime time.Time
}

// Candidate is a file the planner considers, combining both sides'
// current state: sizes, hashes, and modification times.
type Candidate struct {
	Path   string
	Local  FileState
	Remote FileState
}

// PlanOptions are the planner's documented knobs.
type PlanOptions struct {
	DryRun         bool
	Force          bool
	Include        []string
	Exclude        []string
	ConflictPolicy ConflictPolicy // default PolicyNewest
	// BytesPerSecond estimates plan duration; 0 selects DefaultThroughput.
	BytesPerSecond float64
}

// DefaultThroughput is the assumed transfer rate used to estimate a
// plan's duration when the caller doesn't supply one.
const DefaultThroughput = 5 << 20 // 5 MiB/s

// Operation is one planned action against a single candidate path.
type Operation struct {
	Path string
	Kind OpKind
	Size int64
	Hash string
}

// Plan is the planner's deterministic output: ordered operations,
// aggregate size, a duration estimate, and the conflict
// subset (also present in Operations, surfaced separately for callers
// that want to short-circuit on any unresolved conflict).
type Plan struct {
	Org               string
	Project           string
	Direction         Direction
	Operations        []Operation
	TotalBytes        int64
	EstimatedDuration time.Duration
	Conflicts         []Operation
}

// NewPlan computes the minimal operation set for candidates against
// manifest, under direction and opts. The result is deterministic for a
// given set of inputs.
func NewPlan(org, project string, candidates []Candidate, manifest *Manifest, direction Direction, opts PlanOptions) *Plan {
	policy := opts.ConflictPolicy
	if policy == "" {
		policy = PolicyNewest
	}
	throughput := opts.BytesPerSecond
	if throughput <= 0 {
		throughput = DefaultThroughput
	}

	plan := &Plan{Org: org, Project: project, Direction: direction}

	for _, c := range candidates {
		if !passesIncludeExclude(c.Path, opts.Include, opts.Exclude) {
			plan.Operations = append(plan.Operations, Operation{Path: c.Path, Kind: OpSkip})
			continue
		}

		entry, hasManifest := manifest.Get(org, project, c.Path)
		op := planOne(c, entry, hasManifest, direction, policy, opts.Force)
		plan.Operations = append(plan.Operations, op)

		if op.Kind == OpConflict {
			plan.Conflicts = append(plan.Conflicts, op)
		}
		if op.Kind != OpSkip {
			plan.TotalBytes += op.Size
		}
	}

	plan.EstimatedDuration = time.Duration(float64(plan.TotalBytes)/throughput*float64(time.Second))
	return plan
}

func passesIncludeExclude(path string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if globmatch.Match(pattern, path) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if globmatch.Match(pattern, path) {
			return true
		}
	}
	return false
}

// planOne implements the create/update/delete/conflict/skip decision
// table for a single candidate.
func planOne(c Candidate, entry Entry, hasManifest bool, direction Direction, policy ConflictPolicy, force bool) Operation {
	path := c.Path

	if !hasManifest {
		switch {
		case c.Local.Exists && !c.Remote.Exists:
			return Operation{Path: path, Kind: OpCreateRemote, Size: c.Local.Size, Hash: c.Local.Hash}
		case !c.Local.Exists && c.Remote.Exists:
			return Operation{Path: path, Kind: OpCreateLocal, Size: c.Remote.Size, Hash: c.Remote.Hash}
		default:
			return Operation{Path: path, Kind: OpSkip}
		}
	}

	localChanged := c.Local.Exists && c.Local.Hash != entry.Hash
	remoteChanged := c.Remote.Exists && c.Remote.Hash != entry.Hash

	switch {
	case c.Local.Exists && c.Remote.Exists && !localChanged && !remoteChanged:
		if !force {
			return Operation{Path: path, Kind: OpSkip}
		}
		return forcedUpdate(path, c, direction, policy)

	case !c.Local.Exists && c.Remote.Exists && direction == DirectionToShared:
		return Operation{Path: path, Kind: OpDeleteRemote, Size: entry.Size, Hash: entry.Hash}

	case c.Local.Exists && !c.Remote.Exists && direction == DirectionFromShared:
		return Operation{Path: path, Kind: OpDeleteLocal, Size: entry.Size, Hash: entry.Hash}

	case localChanged && !remoteChanged && (direction == DirectionToShared || direction == DirectionBidirectional):
		return Operation{Path: path, Kind: OpUpdateRemote, Size: c.Local.Size, Hash: c.Local.Hash}

	case remoteChanged && !localChanged && (direction == DirectionFromShared || direction == DirectionBidirectional):
		return Operation{Path: path, Kind: OpUpdateLocal, Size: c.Remote.Size, Hash: c.Remote.Hash}

	case localChanged && remoteChanged && direction == DirectionBidirectional:
		return resolveConflict(path, c, policy, force)

	default:
		return Operation{Path: path, Kind: OpSkip}
	}
}

// forcedUpdate picks the update direction for a force-collapsed "would
// have skipped" candidate: to-shared pushes local, from-shared pulls
// remote, bidirectional defaults to remote, matching the "if equal,
// remote wins" tie-break used elsewhere in conflict resolution.
func forcedUpdate(path string, c Candidate, direction Direction, policy ConflictPolicy) Operation {
	switch direction {
	case DirectionToShared:
		return Operation{Path: path, Kind: OpUpdateRemote, Size: c.Local.Size, Hash: c.Local.Hash}
	case DirectionFromShared:
		return Operation{Path: path, Kind: OpUpdateLocal, Size: c.Remote.Size, Hash: c.Remote.Hash}
	default:
		return Operation{Path: path, Kind: OpUpdateLocal, Size: c.Remote.Size, Hash: c.Remote.Hash}
	}
}

// resolveConflict applies policy to a both-sides-changed candidate.
// PolicyPrompt defers the decision to the caller by returning an
// unresolved conflict operation.
func resolveConflict(path string, c Candidate, policy ConflictPolicy, force bool) Operation {
	switch policy {
	case PolicyLocalWins:
		return Operation{Path: path, Kind: OpUpdateRemote, Size: c.Local.Size, Hash: c.Local.Hash}
	case PolicyRemoteWins:
		return Operation{Path: path, Kind: OpUpdateLocal, Size: c.Remote.Size, Hash: c.Remote.Hash}
	case PolicyNewest:
		if force {
			// force disables the timestamp comparison itself; tie-break
			// to remote.
			return Operation{Path: path, Kind: OpUpdateLocal, Size: c.Remote.Size, Hash: c.Remote.Hash}
		}
		if c.Local.ModTime.After(c.Remote.ModTime) {
			return Operation{Path: path, Kind: OpUpdateRemote, Size: c.Local.Size, Hash: c.Local.Hash}
		}
		return Operation{Path: path, Kind: OpUpdateLocal, Size: c.Remote.Size, Hash: c.Remote.Hash}
	default: // PolicyPrompt
		return Operation{Path: path, Kind: OpConflict, Size: c.Local.Size}
	}
}
