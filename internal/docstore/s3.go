package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps one JSON object per document at {prefix}/{collection}/{id}.json.
//
// S3 has no transactions, so merge writes are read-modify-write under a
// process-local lock. Two processes merging into the same document can
// lose an update.
type S3Store struct {
	client S3API
	bucket string
	prefix string

	mu sync.Mutex
}

// NewS3Store wraps an S3 client.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *S3Store) collectionPrefix(collection string) string {
	if s.prefix == "" {
		return collection + "/"
	}
	return s.prefix + "/" + collection + "/"
}

func (s *S3Store) key(collection, id string) string {
	return s.collectionPrefix(collection) + id + ".json"
}

// GetDocument implements Store.
func (s *S3Store) GetDocument(ctx context.Context, collection, id string) (map[string]any, bool, error) {
	doc, err := s.get(ctx, s.key(collection, id))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *S3Store) get(ctx context.Context, key string) (map[string]any, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, s.bucket, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s from bucket %s: %w", key, s.bucket, err)
	}

	doc, err := decodeDocument(b)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", key, err)
	}
	return doc, nil
}

// SetDocument implements Store.
func (s *S3Store) SetDocument(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	key := s.key(collection, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing map[string]any
	if merge {
		var err error
		existing, err = s.get(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	body, err := encodeDocument(apply(existing, data, merge))
	if err != nil {
		return fmt.Errorf("object %s: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s to bucket %s: %w", key, s.bucket, err)
	}
	return nil
}

// ListDocuments implements Store.
func (s *S3Store) ListDocuments(ctx context.Context, collection string) ([]Snapshot, error) {
	prefix := s.collectionPrefix(collection)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			rest := strings.TrimPrefix(*obj.Key, prefix)
			// Nested keys belong to other collections (e.g. a prefix that is
			// itself a collection name).
			if strings.Contains(rest, "/") || path.Ext(rest) != ".json" {
				continue
			}
			keys = append(keys, *obj.Key)
		}
	}

	snaps := make([]Snapshot, 0, len(keys))
	for _, key := range keys {
		doc, err := s.get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".json")
		snaps = append(snaps, Snapshot{ID: id, Data: doc})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps, nil
}

// Close implements Store.
func (s *S3Store) Close() error {
	return nil
}
