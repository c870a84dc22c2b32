// Package blob stores uploaded files in Amazon S3.
//
// A container maps to one bucket. A file share is a container whose
// directories are key prefixes ending in "/".
package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

const delimiter = "/"

// API is the subset of the S3 client used by Store.
// *s3.Client satisfies it.
type API interface {
	s3.ListObjectsV2APIClient
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Object describes a stored object.
type Object struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// Entry is one row of a directory listing.
type Entry struct {
	Name         string    `json:"name"`
	IsDirectory  bool      `json:"isDirectory"`
	Size         int64     `json:"fileSize,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
}

// Store reads and writes objects.
type Store struct {
	client API
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Store instance.
func New(client API, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// BucketName returns the bucket backing a container.
func (s *Store) BucketName(container string) string {
	return s.config.BucketPrefix + strings.ToLower(container)
}

// URL returns the address of an object.
func (s *Store) URL(container, key string) string {
	if s.config.PublicBaseURL == "" {
		return "s3://" + s.BucketName(container) + "/" + key
	}
	return s.config.PublicBaseURL + "/" + s.BucketName(container) + "/" + key
}

// EnsureContainer creates the bucket if it does not exist.
func (s *Store) EnsureContainer(ctx context.Context, container string) error {
	bucket := s.BucketName(container)
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.config.Region != "" && s.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.config.Region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		if hasCode(err, "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	s.logger.Info("created bucket", "bucket", bucket)
	return nil
}

// Exists reports whether the container's bucket exists.
func (s *Store) Exists(ctx context.Context, container string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.BucketName(container))})
	if err == nil {
		return true, nil
	}
	if isMissingBucket(err) {
		return false, nil
	}
	return false, fmt.Errorf("head bucket: %w", err)
}

// Upload stores body under a fresh unique name that keeps the extension of
// filename.
func (s *Store) Upload(ctx context.Context, container, filename, contentType string, body io.Reader) (*Object, error) {
	key := uuid.NewString() + strings.ToLower(path.Ext(filename))
	return s.Put(ctx, container, key, contentType, body)
}

// Put stores body under key, overwriting any existing object.
func (s *Store) Put(ctx context.Context, container, key, contentType string, body io.Reader) (*Object, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	if s.config.AutoCreate {
		if err := s.EnsureContainer(ctx, container); err != nil {
			return nil, err
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.BucketName(container)),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if sized, ok := body.(interface{ Size() int64 }); ok {
		input.ContentLength = aws.Int64(sized.Size())
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	s.logger.Debug("stored object", "container", container, "key", key)
	return &Object{
		Key:         key,
		URL:         s.URL(container, key),
		ContentType: contentType,
	}, nil
}

// Download opens an object. The caller must close the returned reader.
func (s *Store) Download(ctx context.Context, container, key string) (io.ReadCloser, *Object, error) {
	if err := validKey(key); err != nil {
		return nil, nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.BucketName(container)),
		Key:    aws.String(key),
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get object %s: %w", key, err)
	}

	return out.Body, &Object{
		Key:         key,
		URL:         s.URL(container, key),
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

// Delete removes an object. Deleting an absent object or container is not
// an error.
func (s *Store) Delete(ctx context.Context, container, key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.BucketName(container)),
		Key:    aws.String(key),
	})
	if err != nil && !isMissingObject(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// List returns the files and directories directly under prefix. An absent
// container lists as empty.
func (s *Store) List(ctx context.Context, container, prefix string) ([]Entry, error) {
	prefix = strings.Trim(prefix, delimiter)
	if prefix != "" {
		prefix += delimiter
	}

	entries := []Entry{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.BucketName(container)),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isMissingBucket(err) {
				return []Entry{}, nil
			}
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, p := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), delimiter)
			entries = append(entries, Entry{Name: name, IsDirectory: true})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				// directory marker
				continue
			}
			entries = append(entries, Entry{
				Name:         strings.TrimPrefix(key, prefix),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return entries, nil
}

// validKey rejects names that are empty or could address outside their
// directory.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, delimiter) {
		return fmt.Errorf("%w: %q", ErrInvalidName, key)
	}
	for _, part := range strings.Split(key, delimiter) {
		if part == ".." || part == "." {
			return fmt.Errorf("%w: %q", ErrInvalidName, key)
		}
	}
	return nil
}
