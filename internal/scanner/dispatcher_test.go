package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/stretchr/testify/assert"
)

type recordingScanner struct {
	mu      sync.Mutex
	scanned []cloudevents.Target
}

func (r *recordingScanner) ScanTarget(_ context.Context, t cloudevents.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanned = append(r.scanned, t)
	return nil
}

func (r *recordingScanner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scanned)
}

type denyDebouncer struct{}

func (denyDebouncer) Allow(context.Context, string) bool { return false }
func (denyDebouncer) Release(context.Context, string) {}

// keyDebouncer mirrors the Redis SET NX / DEL behaviour in memory.
type keyDebouncer struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newKeyDebouncer() *keyDebouncer {
	return &keyDebouncer{keys: map[string]bool{}}
}

func (k *keyDebouncer) Allow(_ context.Context, key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.keys[key] {
		return false
	}
	k.keys[key] = true
	return true
}

func (k *keyDebouncer) Release(_ context.Context, key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, key)
}

func (k *keyDebouncer) held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.keys[key]
}

func target(id string) cloudevents.Target {
	return cloudevents.Target{Kind: cloudevents.KindInstance, Region: "us-east-1", ResourceID: id}
}

func TestDispatcher_ScansSubmittedTargets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingScanner{}
	d := NewDispatcher(rec, 8, 2, nil, nil)
	d.Start(ctx)

	assert.True(t, d.Submit(ctx, target("i-1")))
	assert.True(t, d.Submit(ctx, target("i-2")))

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	d.Wait()
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(&recordingScanner{}, 1, 1, nil, nil)

	assert.True(t, d.Submit(context.Background(), target("i-1")))
	assert.False(t, d.Submit(context.Background(), target("i-2")))
}

func TestDispatcher_Debounced(t *testing.T) {
	d := NewDispatcher(&recordingScanner{}, 4, 1, denyDebouncer{}, nil)

	assert.False(t, d.Submit(context.Background(), target("i-1")))
	assert.Empty(t, d.queue)
}

func TestDispatcher_CoalescesPendingDuplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingScanner{}
	d := NewDispatcher(rec, 4, 1, newKeyDebouncer(), nil)

	assert.True(t, d.Submit(ctx, target("sg-1")))
	assert.False(t, d.Submit(ctx, target("sg-1")))
	assert.Len(t, d.queue, 1)

	d.Start(ctx)
	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	d.Wait()
}

func TestDispatcher_EventAfterScanIsQueued(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingScanner{}
	deb := newKeyDebouncer()
	d := NewDispatcher(rec, 4, 1, deb, nil)
	d.Start(ctx)

	assert.True(t, d.Submit(ctx, target("sg-1")))
	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !deb.held(target("sg-1").Key()) }, time.Second, 10*time.Millisecond)

	assert.True(t, d.Submit(ctx, target("sg-1")))
	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	d.Wait()
}

func TestDispatcher_DroppedTargetCanBeResubmitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingScanner{}
	deb := newKeyDebouncer()
	d := NewDispatcher(rec, 1, 1, deb, nil)

	assert.True(t, d.Submit(ctx, target("sg-1")))
	assert.False(t, d.Submit(ctx, target("sg-9")))
	assert.False(t, deb.held(target("sg-9").Key()))

	d.Start(ctx)
	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, 10*time.Millisecond)

	assert.True(t, d.Submit(ctx, target("sg-9")))
	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	d.Wait()
}
