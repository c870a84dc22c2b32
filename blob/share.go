package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// shareTimeLayout prefixes file share uploads so repeated uploads of the
// same file name do not overwrite each other.
const shareTimeLayout = "20060102_150405"

// ShareKey returns the object key of name inside directory. An empty
// directory addresses the share root.
func ShareKey(directory, name string) string {
	directory = strings.Trim(directory, delimiter)
	if directory == "" {
		return name
	}
	return directory + delimiter + name
}

// TimestampedName returns name prefixed with t as YYYYMMDD_HHMMSS.
func TimestampedName(t time.Time, name string) string {
	return t.Format(shareTimeLayout) + "_" + path.Base(name)
}

// EnsureDirectory creates the share and a marker object for directory.
func (s *Store) EnsureDirectory(ctx context.Context, share, directory string) error {
	if err := s.EnsureContainer(ctx, share); err != nil {
		return err
	}
	directory = strings.Trim(directory, delimiter)
	if directory == "" {
		return nil
	}
	if err := validKey(directory); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.BucketName(share)),
		Key:           aws.String(directory + delimiter),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("create directory %s: %w", directory, err)
	}
	return nil
}

// UploadToShare stores body in directory under a timestamped copy of
// filename and returns the stored file name.
func (s *Store) UploadToShare(ctx context.Context, share, directory, filename, contentType string, body io.Reader) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("%w: empty file name", ErrInvalidName)
	}
	if err := s.EnsureDirectory(ctx, share, directory); err != nil {
		return "", err
	}

	name := TimestampedName(s.now(), filename)
	if _, err := s.Put(ctx, share, ShareKey(directory, name), contentType, body); err != nil {
		return "", err
	}
	return name, nil
}
