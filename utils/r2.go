// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"
)

// ObjectPutter stores one object. *R2Uploader implements it; tests use fakes.
type ObjectPutter interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

// R2Options are the bucket credentials. Endpoint defaults to the account's R2 endpoint.
type R2Options struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Endpoint        string
}

// R2Uploader writes objects to a Cloudflare R2 (S3 compatible) bucket.
type R2Uploader struct {
	client *s3.Client
	bucket string
}

func NewR2Uploader(ctx context.Context, opts R2Options) (*R2Uploader, error) {
	if opts.Bucket == "" {
		return nil, errors.New("r2 bucket name is required")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		if opts.AccountID == "" {
			return nil, errors.New("r2 account id or endpoint is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &R2Uploader{client: client, bucket: opts.Bucket}, nil
}

func (u *R2Uploader) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to R2: %w", key, err)
	}
	return nil
}

// SnapshotKey builds "snapshots/{network}/{contract}/{block}.json" with the network slugified.
func SnapshotKey(network, contract string, block int64) string {
	net := slug.Make(network)
	if net == "" {
		net = "unknown"
	}
	return fmt.Sprintf("snapshots/%s/%s/%s.json", net, strings.ToLower(contract), strconv.FormatInt(block, 10))
}
