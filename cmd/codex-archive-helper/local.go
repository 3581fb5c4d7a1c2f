package main

import (
	"os"
	"path/filepath"

	"github.com/fractary/codex/internal/codexerr"
)

// readLocal implements the "local" handler: bucket is a root directory on
// disk and key is a path beneath it. This exists for development and tests
// that need the archive-helper contract without live cloud credentials.
func readLocal(bucket, key string) ([]byte, error) {
	if bucket == "" {
		return nil, codexerr.New(codexerr.CodeConfigInvalid, "--bucket is required for the local handler")
	}
	path := filepath.Join(bucket, filepath.FromSlash(key))
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, codexerr.Wrap(codexerr.CodeNotFound, "object not found: "+key, err)
		}
		return nil, codexerr.Wrap(codexerr.CodeTransport, "reading local object", err)
	}
	return content, nil
}
