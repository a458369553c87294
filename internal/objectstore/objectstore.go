// Package objectstore implements the S3-compatible archival store the Audit
// Pipeline persists per-entity histories to. No example in the retrieved
// pack imports an S3 SDK directly; this is a deliberate ecosystem pick
// (documented in DESIGN.md), structured the way the klaytn kafka package
// structures its repository wrapper: a small struct holding a client plus a
// typed Get/Put/List surface.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/flashbots/tips/internal/metrics"
)

// Key prefixes, per spec.md §4.4/§6.
const (
	PrefixBundles            = "bundles"
	PrefixUserOps            = "userops"
	PrefixTransactionsByHash = "transactions/by_hash"
)

// Store wraps an S3-compatible client scoped to a single bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a Store against bucket, using region and an optional custom
// endpoint (for S3-compatible providers other than AWS).
func New(ctx context.Context, bucket, region, endpoint string) (*Store, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: bucket}, nil
}

// BundleKey returns the key a bundle's full lifecycle history is archived
// under.
func BundleKey(uuid string) string {
	return fmt.Sprintf("%s/%s", PrefixBundles, uuid)
}

// UserOpKey returns the key a UserOperation's full lifecycle history is
// archived under.
func UserOpKey(userOpHash string) string {
	return fmt.Sprintf("%s/%s", PrefixUserOps, userOpHash)
}

// TransactionIndexKey returns the key the transaction-hash index entry is
// archived under.
func TransactionIndexKey(txHash string) string {
	return fmt.Sprintf("%s/%s", PrefixTransactionsByHash, txHash)
}

// Put writes data at key with a JSON UTF-8 content type, per spec.md §6.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json; charset=utf-8"),
	})
	if err != nil {
		metrics.IncObjectStoreError("put")
		return fmt.Errorf("objectstore: put %q: %w", key, err)
	}
	metrics.IncObjectStorePut(prefixOf(key))
	return nil
}

// Get reads the object at key. Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		metrics.IncObjectStoreError("get")
		return nil, fmt.Errorf("objectstore: get %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		metrics.IncObjectStoreError("get")
		return nil, fmt.Errorf("objectstore: reading body for %q: %w", key, err)
	}

	metrics.IncObjectStoreGet(prefixOf(key))
	return data, nil
}

// List returns all keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.IncObjectStoreError("list")
			return nil, fmt.Errorf("objectstore: listing prefix %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

func prefixOf(key string) string {
	if idx := strings.IndexByte(key, '/'); idx >= 0 {
		return key[:idx]
	}
	return key
}

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = fmt.Errorf("objectstore: key not found")
