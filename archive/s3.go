// Package archive stores copies of review exports in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yeremiapane/diner-app/config"
)

type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	api    PutObjectAPI
	bucket string
}

func NewS3Archiver(api PutObjectAPI, bucket string) *S3Archiver {
	return &S3Archiver{api: api, bucket: bucket}
}

// NewS3ArchiverFromConfig uses path-style addressing when an endpoint override
// is configured, which local S3 emulators expect.
func NewS3ArchiverFromConfig(cfg aws.Config, bucket string) *S3Archiver {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != nil {
			o.UsePathStyle = true
		}
	})
	return NewS3Archiver(client, bucket)
}

func (a *S3Archiver) Archive(ctx context.Context, key, contentType string, body []byte) error {
	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		Body:          bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}

// FromConfig returns nil when no export bucket is configured.
func FromConfig(ctx context.Context, cfg config.Config) (*S3Archiver, error) {
	if cfg.Export.Bucket == "" {
		return nil, nil
	}
	awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	return NewS3ArchiverFromConfig(awsCfg, cfg.Export.Bucket), nil
}
