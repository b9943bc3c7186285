// Package archive uploads activity log entries to S3 before they are purged.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/frahmantamala/survey-management/internal/activity"
	"github.com/google/uuid"
)

// PutObjectAPI is the subset of the S3 client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

type S3Archiver struct {
	api    PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Archiver(api PutObjectAPI, bucket, prefix string, now func() time.Time) *S3Archiver {
	if now == nil {
		now = time.Now
	}
	return &S3Archiver{api: api, bucket: bucket, prefix: prefix, now: now}
}

// NewFromConfig builds an archiver backed by the default AWS credential chain.
// A custom endpoint switches to path-style addressing for S3-compatible stores.
func NewFromConfig(ctx context.Context, cfg Config, now func() time.Time) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Archiver(client, cfg.Bucket, cfg.Prefix, now), nil
}

type document struct {
	ArchivedAt   time.Time         `json:"archivedAt"`
	Cutoff       time.Time         `json:"cutoffDate"`
	TotalRecords int               `json:"totalRecords"`
	Logs         []*activity.Entry `json:"logs"`
}

func (a *S3Archiver) Archive(ctx context.Context, cutoff time.Time, entries []*activity.Entry) (string, error) {
	body, err := json.Marshal(document{
		ArchivedAt:   a.now(),
		Cutoff:       cutoff,
		TotalRecords: len(entries),
		Logs:         entries,
	})
	if err != nil {
		return "", fmt.Errorf("archive: encode: %w", err)
	}

	key := path.Join(a.prefix, fmt.Sprintf("activity-logs-before-%s-%s.json", cutoff.Format(time.DateOnly), uuid.NewString()))
	_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put %s: %w", key, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}
