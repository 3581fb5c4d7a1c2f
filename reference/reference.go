// Package reference implements the codex:// URI grammar: parsing,
// rebuilding, validation and context-aware resolution into a fetchable
// reference. It has no dependency on the storage or cache layers; those
// consume the Resolved value this package produces.
package reference

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/fractary/codex/internal/codexerr"
)

// Scheme is the only accepted URI scheme.
const Scheme = "codex"

// Parsed is a normalized (org, project, path) reference, as produced by
// Parse. Two Parsed values are equal iff all three fields are byte-wise
// equal after normalization.
type Parsed struct {
	Org     string
	Project string
	Path    string
}

// String rebuilds the canonical URI form, equivalent to Build(p).
func (p Parsed) String() string {
	if p.Path == "" {
		return fmt.Sprintf("%s://%s/%s", Scheme, p.Org, p.Project)
	}
	return fmt.Sprintf("%s://%s/%s/%s", Scheme, p.Org, p.Project, p.Path)
}

// Parse validates and decomposes a codex:// URI. The path component, when
// present, is split on '/'; any segment equal to ".." or containing a
// percent-encoded separator ("%2f"/"%2F") fails with InvalidPath. Both org
// and project must be non-empty and contain no '/'.
func Parse(raw string) (Parsed, error) {
	const prefix = Scheme + "://"
	if !strings.HasPrefix(raw, prefix) {
		return Parsed{}, codexerr.New(codexerr.CodeInvalidURI, fmt.Sprintf("missing %q scheme prefix", prefix))
	}

	rest := strings.TrimPrefix(raw, prefix)
	if rest == "" {
		return Parsed{}, codexerr.New(codexerr.CodeInvalidURI, "empty authority/path")
	}

	segments := strings.SplitN(rest, "/", 3)
	org := segments[0]
	if org == "" {
		return Parsed{}, codexerr.New(codexerr.CodeInvalidURI, "organization must not be empty")
	}

	if len(segments) < 2 || segments[1] == "" {
		return Parsed{}, codexerr.New(codexerr.CodeInvalidURI, "project must not be empty")
	}
	project := segments[1]

	var rawPath string
	if len(segments) == 3 {
		rawPath = segments[2]
	}

	normalized, err := normalizePath(rawPath)
	if err != nil {
		return Parsed{}, err
	}

	return Parsed{Org: org, Project: project, Path: normalized}, nil
}

// Build is the inverse of Parse: it rejects empty org/project and strips a
// leading '/' from path before composing the canonical URI string.
func Build(org, project, p string) (string, error) {
	if org == "" {
		return "", codexerr.New(codexerr.CodeInvalidURI, "organization must not be empty")
	}
	if project == "" {
		return "", codexerr.New(codexerr.CodeInvalidURI, "project must not be empty")
	}
	p = strings.TrimPrefix(p, "/")
	return Parsed{Org: org, Project: project, Path: p}.String(), nil
}

// Validate reports whether raw parses successfully; it is a pure predicate
// equivalent to "Parse succeeds".
func Validate(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// normalizePath splits on '/', rejects traversal and percent-encoded
// separators, and rejoins with forward slashes. An empty path is legal and
// denotes the project root.
func normalizePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}

	// path-traversal via percent-encoding: decode defensively and reject any
	// segment whose *decoded* form still contains a separator or "..".
	segments := strings.Split(p, "/")
	clean := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return "", codexerr.New(codexerr.CodeInvalidPath, fmt.Sprintf("malformed percent-encoding in segment %q", seg))
		}
		if decoded != seg && strings.Contains(decoded, "/") {
			return "", codexerr.New(codexerr.CodeInvalidPath, fmt.Sprintf("percent-encoded separator in segment %q", seg))
		}
		if decoded == ".." || seg == ".." {
			return "", codexerr.New(codexerr.CodeInvalidPath, "path traversal segment '..' is not allowed")
		}
		clean = append(clean, seg)
	}

	return path.Join(clean...), nil
}
