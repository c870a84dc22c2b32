package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jacentio/storefront/internal/ddbtest"
	"github.com/jacentio/storefront/queue"
	"github.com/jacentio/storefront/store"
	"github.com/jacentio/storefront/worker"
)

// fakeReceiver hands out queued batches and records deletes.
type fakeReceiver struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	errs     []error
	deleted  []string
	received int
	onEmpty  func()
}

func (f *fakeReceiver) Receive(ctx context.Context, name string, max int) ([]queue.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.batches) == 0 {
		if f.onEmpty != nil {
			f.onEmpty()
		}
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeReceiver) Delete(ctx context.Context, name, receipt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, receipt)
	return nil
}

var _ worker.Receiver = (*queue.Queue)(nil)

func newTestPoller(t *testing.T, recv worker.Receiver) (*worker.Poller, *ddbtest.Client) {
	t.Helper()
	client := ddbtest.New("Orders")
	cfg := worker.DefaultConfig()
	cfg.ErrorBackoff = time.Millisecond
	h := worker.NewHandler(store.New(client, store.DefaultConfig(), nil), cfg, nil, nil)
	return worker.NewPoller(h, recv, cfg, nil), client
}

func TestPollOnce_DeletesAllButFailed(t *testing.T) {
	recv := &fakeReceiver{batches: [][]queue.Message{{
		{ID: "m1", Body: `{"action":"create-order","orderId":"O1","customerId":"C1"}`, Receipt: "r1"},
		{ID: "m2", Body: "garbage", Receipt: "r2"},
		{ID: "m3", Body: `{"action":"create-order","orderId":"O3","customerId":"C1"}`, Receipt: "r3"},
	}}}
	p, client := newTestPoller(t, recv)

	// The first write (m1) fails.
	client.FailNext("PutItem", errors.New("throttled"))

	n, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 messages, got %d", n)
	}
	if len(recv.deleted) != 2 || recv.deleted[0] != "r2" || recv.deleted[1] != "r3" {
		t.Errorf("expected r2 and r3 deleted, got %v", recv.deleted)
	}
	if client.Item("Orders", "C1", "O1") != nil {
		t.Error("expected O1 not written")
	}
	if client.Item("Orders", "C1", "O3") == nil {
		t.Error("expected O3 written")
	}
}

func TestPollOnce_ReceiveError(t *testing.T) {
	boom := errors.New("access denied")
	recv := &fakeReceiver{errs: []error{boom}}
	p, _ := newTestPoller(t, recv)

	if _, err := p.PollOnce(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected receive error, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recv := &fakeReceiver{
		errs: []error{errors.New("temporary")},
		batches: [][]queue.Message{{
			{ID: "m1", Body: `{"action":"create-order","orderId":"O1","customerId":"C1"}`, Receipt: "r1"},
		}},
		onEmpty: cancel,
	}
	p, client := newTestPoller(t, recv)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}

	if recv.received < 3 {
		t.Errorf("expected receive to be retried after the error, got %d calls", recv.received)
	}
	if client.Item("Orders", "C1", "O1") == nil {
		t.Error("expected O1 written")
	}
}
