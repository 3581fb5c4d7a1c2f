package main

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	codexconfig "github.com/fractary/codex/config"
	"github.com/fractary/codex/internal/codexerr"
)

// newS3Client builds an S3 client for handler, using a custom endpoint
// resolver for every non-AWS backend: the "s3" handler uses AWS's default
// endpoint resolution, every other handler points the client at
// cfg.Endpoint with HostnameImmutable so the SDK doesn't try to rewrite
// it.
func newS3Client(ctx context.Context, handler string, cfg codexconfig.StorageConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if handler != "s3" {
		endpoint := cfg.Endpoint
		opts = append(opts, config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			})))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, codexerr.Wrap(codexerr.CodeConfigInvalid, "loading aws config", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// getObject fetches bucket/key in full using the s3/manager concurrent
// downloader rather than a bare GetObject, since archive objects can be
// large: the manager splits the object into byte-range parts and fetches
// them in parallel into an in-memory WriteAtBuffer, which the archive
// helper then writes to stdout (main.go) in one shot.
func getObject(ctx context.Context, client *s3.Client, bucket, key string) ([]byte, error) {
	downloader := manager.NewDownloader(client)
	buf := manager.NewWriteAtBuffer(nil)

	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, codexerr.Wrap(codexerr.CodeNotFound, "object not found: "+key, err)
		}
		return nil, codexerr.Wrap(codexerr.CodeTransport, "getting object "+key, err)
	}
	return buf.Bytes(), nil
}
