// Command codex-archive-helper is the external process storage/archive.go
// shells out to for every archive-tier fetch. It is deliberately a
// separate binary rather than a linked client: the core
// library never imports a cloud SDK directly, so swapping or upgrading a
// storage backend never touches the resolution/cache/sync engines.
//
// Usage:
//
//	codex-archive-helper file read --remote-path <key> --handler <handler> [--bucket <bucket>]
//
// handler selects the backend: "s3" (AWS S3), "minio", "hetzner", "r2" (all
// S3-compatible, via a custom endpoint), or "local" (a plain directory on
// disk, for development and tests without live cloud credentials). Endpoint
// and credentials come from CODEX_ARCHIVE_* environment variables (see
// config.StorageConfig) — never from flags, so they never show up in a
// process listing. On success the object's bytes are written to stdout;
// on failure a message goes to stderr and the process exits non-zero.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fractary/codex/config"
	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/internal/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	log := telemetry.WithComponent("archive-helper")

	if len(args) < 2 || args[0] != "file" || args[1] != "read" {
		fmt.Fprintln(stderr, "usage: codex-archive-helper file read --remote-path <key> --handler <handler> [--bucket <bucket>]")
		return 2
	}

	fs := flag.NewFlagSet("file read", flag.ContinueOnError)
	fs.SetOutput(stderr)
	remotePath := fs.String("remote-path", "", "object key to read")
	handler := fs.String("handler", "", "backend: s3, minio, hetzner, r2, local")
	bucket := fs.String("bucket", "", "bucket name (or, for the local handler, the root directory)")
	if err := fs.Parse(args[2:]); err != nil {
		return 2
	}

	if *remotePath == "" {
		fmt.Fprintln(stderr, "--remote-path is required")
		return 2
	}

	storageCfg, err := config.NewConfigLoader("CODEX_ARCHIVE").LoadStorage(*handler)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx := context.Background()
	content, err := fetch(ctx, *handler, storageCfg, *bucket, *remotePath)
	if err != nil {
		log.WithField("handler", *handler).WithField("remotePath", *remotePath).WithError(err).Error("fetch failed")
		fmt.Fprintln(stderr, err)
		if codexerr.CodeOf(err) == codexerr.CodeNotFound {
			return 3
		}
		return 1
	}

	if _, err := stdout.Write(content); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// fetch dispatches to the backend named by handler.
func fetch(ctx context.Context, handler string, cfg config.StorageConfig, bucket, key string) ([]byte, error) {
	if handler == "local" {
		return readLocal(bucket, key)
	}
	client, err := newS3Client(ctx, handler, cfg)
	if err != nil {
		return nil, err
	}
	return getObject(ctx, client, bucket, key)
}
