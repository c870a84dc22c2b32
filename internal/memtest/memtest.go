// Package memtest provides in-memory queue and object storage doubles for
// tests of the HTTP layer.
package memtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jacentio/storefront/blob"
	"github.com/jacentio/storefront/queue"
)

// Queue is an in-memory message queue keyed by queue name.
type Queue struct {
	mu      sync.Mutex
	queues  map[string][]string
	sendErr error
	nextID  int
}

// FailSend makes every later Send return err until it is called with nil.
func (q *Queue) FailSend(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sendErr = err
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{queues: map[string][]string{}}
}

func (q *Queue) Ensure(ctx context.Context, name string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[name]; !ok {
		q.queues[name] = nil
	}
	return "mem://" + name, nil
}

func (q *Queue) Exists(ctx context.Context, name string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queues[name]
	return ok, nil
}

func (q *Queue) Send(ctx context.Context, name, body string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return "", q.sendErr
	}
	if body == "" {
		return "", queue.ErrInvalidMessage
	}
	q.queues[name] = append(q.queues[name], body)
	q.nextID++
	return fmt.Sprintf("m-%d", q.nextID), nil
}

func (q *Queue) ReceiveOne(ctx context.Context, name string) (queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.queues[name]
	if len(pending) == 0 {
		return queue.Message{}, queue.ErrEmpty
	}
	q.queues[name] = pending[1:]
	return queue.Message{ID: "m", Body: pending[0], Receipt: "r"}, nil
}

// Pending returns the bodies waiting in a queue.
func (q *Queue) Pending(name string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.queues[name]...)
}

// ShareTime stamps every file share upload.
var ShareTime = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type object struct {
	data        []byte
	contentType string
}

// Blobs is an in-memory object store. Directories are key prefixes ending in "/".
type Blobs struct {
	mu         sync.Mutex
	containers map[string]map[string]object
	nextID     int
}

// NewBlobs returns an empty Blobs.
func NewBlobs() *Blobs {
	return &Blobs{containers: map[string]map[string]object{}}
}

func (b *Blobs) EnsureContainer(ctx context.Context, container string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.containers[container] == nil {
		b.containers[container] = map[string]object{}
	}
	return nil
}

func (b *Blobs) Exists(ctx context.Context, container string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.containers[container]
	return ok, nil
}

func (b *Blobs) put(container, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.containers[container] == nil {
		b.containers[container] = map[string]object{}
	}
	b.containers[container][key] = object{data: data, contentType: contentType}
	return nil
}

func (b *Blobs) Upload(ctx context.Context, container, filename, contentType string, body io.Reader) (*blob.Object, error) {
	b.mu.Lock()
	b.nextID++
	key := fmt.Sprintf("blob-%d%s", b.nextID, strings.ToLower(path.Ext(filename)))
	b.mu.Unlock()

	if err := b.put(container, key, contentType, body); err != nil {
		return nil, err
	}
	return &blob.Object{Key: key, URL: "mem://" + container + "/" + key, ContentType: contentType}, nil
}

func (b *Blobs) Download(ctx context.Context, container, key string) (io.ReadCloser, *blob.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.containers[container][key]
	if !ok {
		return nil, nil, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), &blob.Object{
		Key:         key,
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

func (b *Blobs) Delete(ctx context.Context, container, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.containers[container], key)
	return nil
}

func (b *Blobs) List(ctx context.Context, container, prefix string) ([]blob.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	entries := []blob.Entry{}
	seen := map[string]bool{}
	keys := make([]string, 0, len(b.containers[container]))
	for k := range b.containers[container] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) || key == prefix {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			dir := rest[:i]
			if !seen[dir] {
				seen[dir] = true
				entries = append(entries, blob.Entry{Name: dir, IsDirectory: true})
			}
			continue
		}
		entries = append(entries, blob.Entry{Name: rest, Size: int64(len(b.containers[container][key].data))})
	}
	return entries, nil
}

func (b *Blobs) EnsureDirectory(ctx context.Context, share, directory string) error {
	if err := b.EnsureContainer(ctx, share); err != nil {
		return err
	}
	directory = strings.Trim(directory, "/")
	if directory == "" {
		return nil
	}
	return b.put(share, directory+"/", "", bytes.NewReader(nil))
}

func (b *Blobs) UploadToShare(ctx context.Context, share, directory, filename, contentType string, body io.Reader) (string, error) {
	if err := b.EnsureDirectory(ctx, share, directory); err != nil {
		return "", err
	}
	name := blob.TimestampedName(ShareTime, filename)
	if err := b.put(share, blob.ShareKey(directory, name), contentType, body); err != nil {
		return "", err
	}
	return name, nil
}
