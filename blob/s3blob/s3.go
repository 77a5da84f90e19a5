package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3BlobStore struct {
	client     *s3.Client
	bucketName string
	region     string
	endpoint   string // non-empty in dev mode
}

func NewS3BlobStore(ctx context.Context, devMode bool, s3Endpoint string, bucketName string) (*S3BlobStore, error) {
	client, region, err := newS3Client(context.Background(), devMode, s3Endpoint)
	if err != nil {
		return nil, err
	}

	// Fail fast if the bucket is missing rather than on the first upload
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		return nil, fmt.Errorf("given bucket '%s' not reachable in s3: %w", bucketName, err)
	}

	blobStore := &S3BlobStore{client: client, bucketName: bucketName, region: region}
	if devMode {
		blobStore.endpoint = s3Endpoint
	}

	return blobStore, nil
}

func newS3Client(ctx context.Context, devMode bool, s3Endpoint string) (*s3.Client, string, error) {
	var cfg aws.Config
	var err error

	if devMode {
		// Load config with dummy credentials and region for local/dev
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, "", err
		}

		// Override endpoint for S3 locally; path-style addressing because
		// local emulators have no bucket subdomains
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s3Endpoint)
			o.UsePathStyle = true
		}), cfg.Region, nil
	}

	// Production: default config (uses task role and AWS endpoints)
	cfg, err = config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, "", err
	}

	return s3.NewFromConfig(cfg), cfg.Region, nil
}

// Upload writes the object; an existing object at the same key is replaced.
func (blobStore *S3BlobStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := blobStore.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(blobStore.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("PutObject failed: %w", err)
	}

	return nil
}

// PublicURL returns the retrievable address for a key. The bucket is
// public-read; no presigning.
func (blobStore *S3BlobStore) PublicURL(key string) string {
	if blobStore.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", blobStore.endpoint, blobStore.bucketName, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", blobStore.bucketName, blobStore.region, key)
}
