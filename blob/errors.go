package blob

import (
	"errors"

	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound is returned when the object or its container does not exist.
	ErrNotFound = errors.New("blob: object not found")

	// ErrInvalidName is returned for empty or path-escaping object names.
	ErrInvalidName = errors.New("blob: invalid object name")
)

// hasCode reports whether err is an S3 API error with one of codes.
func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}

func isMissingBucket(err error) bool {
	return hasCode(err, "NoSuchBucket", "NotFound")
}

func isMissingObject(err error) bool {
	return hasCode(err, "NoSuchKey", "NoSuchBucket", "NotFound")
}
