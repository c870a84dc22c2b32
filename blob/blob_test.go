package blob_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jacentio/storefront/blob"
)

type fakeObject struct {
	data        []byte
	contentType string
}

// fakeS3 keeps buckets in memory and implements delimiter listing.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]map[string]fakeObject
	creates int
	failPut error
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{buckets: map[string]map[string]fakeObject{}}
	for _, b := range buckets {
		f.buckets[b] = map[string]fakeObject{}
	}
	return f
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	name := aws.ToString(in.Bucket)
	if _, ok := f.buckets[name]; ok {
		return nil, &types.BucketAlreadyOwnedByYou{Message: aws.String("already owned")}
	}
	f.buckets[name] = map[string]fakeObject{}
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[aws.ToString(in.Bucket)]; !ok {
		return nil, &types.NotFound{Message: aws.String("not found")}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut != nil {
		return nil, f.failPut
	}
	bucket, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	bucket[aws.ToString(in.Key)] = fakeObject{data: data, contentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	obj, ok := bucket[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.data))),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	delete(bucket, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: aws.String("no such bucket")}
	}

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if i := strings.Index(rest, delim); delim != "" && rest != "" && i >= 0 {
			p := prefix + rest[:i+1]
			if !seen[p] {
				seen[p] = true
				out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(p)})
			}
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(bucket[k].data))),
			LastModified: aws.Time(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		})
	}
	return out, nil
}

func TestDefaultConfig(t *testing.T) {
	if !blob.DefaultConfig().AutoCreate {
		t.Error("expected AutoCreate to be true")
	}
}

func TestUpload_KeepsExtension(t *testing.T) {
	fake := newFakeS3()
	s := blob.New(fake, blob.Config{AutoCreate: true, PublicBaseURL: "https://cdn.example.com/"}, nil)

	obj, err := s.Upload(context.Background(), "product-images", "Shoe.PNG", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !strings.HasSuffix(obj.Key, ".png") || len(obj.Key) != 36+4 {
		t.Errorf("expected uuid name with .png extension, got %q", obj.Key)
	}
	if obj.URL != "https://cdn.example.com/product-images/"+obj.Key {
		t.Errorf("unexpected URL %q", obj.URL)
	}
	if fake.creates != 1 {
		t.Errorf("expected bucket to be created, got %d creates", fake.creates)
	}
}

func TestUpload_UniqueNames(t *testing.T) {
	s := blob.New(newFakeS3(), blob.DefaultConfig(), nil)
	ctx := context.Background()

	a, err := s.Upload(ctx, "c", "a.txt", "", strings.NewReader("1"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	b, err := s.Upload(ctx, "c", "a.txt", "", strings.NewReader("2"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if a.Key == b.Key {
		t.Error("expected distinct keys for repeated uploads")
	}
	if a.ContentType != "application/octet-stream" {
		t.Errorf("expected default content type, got %q", a.ContentType)
	}
}

func TestPutThenDownload(t *testing.T) {
	s := blob.New(newFakeS3(), blob.DefaultConfig(), nil)
	ctx := context.Background()

	if _, err := s.Put(ctx, "docs", "a/b.txt", "text/plain", strings.NewReader("hello")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	body, obj, err := s.Download(ctx, "docs", "a/b.txt")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}
	if obj.ContentType != "text/plain" || obj.Size != 5 {
		t.Errorf("unexpected object %+v", obj)
	}
}

func TestDownload_NotFound(t *testing.T) {
	s := blob.New(newFakeS3("docs"), blob.DefaultConfig(), nil)
	ctx := context.Background()

	if _, _, err := s.Download(ctx, "docs", "missing.txt"); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
	if _, _, err := s.Download(ctx, "nobucket", "missing.txt"); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing bucket, got %v", err)
	}
}

func TestInvalidNames(t *testing.T) {
	s := blob.New(newFakeS3(), blob.DefaultConfig(), nil)
	ctx := context.Background()

	for _, key := range []string{"", "/abs", "../up", "a/../../b", "a/./b"} {
		if _, err := s.Put(ctx, "docs", key, "", strings.NewReader("x")); !errors.Is(err, blob.ErrInvalidName) {
			t.Errorf("key %q: expected ErrInvalidName, got %v", key, err)
		}
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s := blob.New(newFakeS3("docs"), blob.DefaultConfig(), nil)
	ctx := context.Background()

	if err := s.Delete(ctx, "docs", "missing.txt"); err != nil {
		t.Errorf("expected nil for missing key, got %v", err)
	}
	if err := s.Delete(ctx, "nobucket", "missing.txt"); err != nil {
		t.Errorf("expected nil for missing bucket, got %v", err)
	}
}

func TestPut_BackendError(t *testing.T) {
	fake := newFakeS3()
	boom := errors.New("slow down")
	fake.failPut = boom
	s := blob.New(fake, blob.DefaultConfig(), nil)

	if _, err := s.Put(context.Background(), "docs", "a.txt", "", strings.NewReader("x")); !errors.Is(err, boom) {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestExists(t *testing.T) {
	s := blob.New(newFakeS3("docs"), blob.DefaultConfig(), nil)
	ctx := context.Background()

	if ok, err := s.Exists(ctx, "docs"); err != nil || !ok {
		t.Errorf("expected docs to exist, got %v, %v", ok, err)
	}
	if ok, err := s.Exists(ctx, "missing"); err != nil || ok {
		t.Errorf("expected missing to be absent, got %v, %v", ok, err)
	}
}

func TestBucketPrefix(t *testing.T) {
	s := blob.New(newFakeS3(), blob.Config{BucketPrefix: " Shop- "}, nil)

	if got := s.BucketName("Product-Images"); got != "shop-product-images" {
		t.Errorf("expected shop-product-images, got %q", got)
	}
	if got := s.URL("docs", "a.txt"); got != "s3://shop-docs/a.txt" {
		t.Errorf("unexpected URL %q", got)
	}
}
