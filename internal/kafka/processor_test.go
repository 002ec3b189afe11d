package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingDispatcher struct {
	targets []cloudevents.Target
}

func (d *recordingDispatcher) Submit(_ context.Context, t cloudevents.Target) bool {
	d.targets = append(d.targets, t)
	return true
}

func TestHandleMessage(t *testing.T) {
	d := &recordingDispatcher{}
	router := cloudevents.NewRouter()

	enveloped := []byte(`{"event_id":"1","schema_version":"v1","event":{"source":"aws.s3","region":"eu-west-1","detail":{"eventName":"PutBucketAcl","requestParameters":{"bucketName":"logs"}}}}`)
	handleMessage(context.Background(), enveloped, router, d, zap.NewNop())
	require.Len(t, d.targets, 1)
	assert.Equal(t, cloudevents.KindBucket, d.targets[0].Kind)
	assert.Equal(t, "logs", d.targets[0].ResourceID)

	bare := []byte(`{"source":"aws.ec2","detail":{"eventName":"StopInstances","requestParameters":{"instanceId":"i-1"}}}`)
	handleMessage(context.Background(), bare, router, d, zap.NewNop())
	require.Len(t, d.targets, 2)
	assert.Equal(t, "i-1", d.targets[1].ResourceID)

	handleMessage(context.Background(), []byte("garbage"), router, d, zap.NewNop())
	assert.Len(t, d.targets, 2)
}

func TestRunEventProcessor_NoBrokers(t *testing.T) {
	_, err := RunEventProcessor(context.Background(), ProcessorConfig{Topic: "cloud-events"}, cloudevents.NewRouter(), &recordingDispatcher{}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewDialer(t *testing.T) {
	plainDialer := newDialer(ProcessorConfig{})
	assert.Nil(t, plainDialer.SASLMechanism)
	assert.Nil(t, plainDialer.TLS)

	secure := newDialer(ProcessorConfig{Username: "key", Password: "secret"})
	assert.NotNil(t, secure.SASLMechanism)
	assert.NotNil(t, secure.TLS)
}

type scriptedReader struct {
	mu    sync.Mutex
	calls int
	fail  int
	value []byte
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.mu.Unlock()

	switch {
	case n <= r.fail:
		return kafka.Message{}, errors.New("broker unavailable")
	case n == r.fail+1 && r.value != nil:
		return kafka.Message{Value: r.value}, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestConsume_WaitsBetweenFailedReads(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	reader := &scriptedReader{fail: 1 << 30}
	consume(ctx, reader, backoff.NewConstantBackOff(100*time.Millisecond), func([]byte) {}, zap.NewNop())

	assert.GreaterOrEqual(t, reader.count(), 2)
	assert.LessOrEqual(t, reader.count(), 4)
}

func TestConsume_HandlesMessageAfterReadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{fail: 1, value: []byte(`{"source":"aws.s3"}`)}
	handled := make(chan []byte, 1)

	go consume(ctx, reader, backoff.NewConstantBackOff(10*time.Millisecond), func(v []byte) { handled <- v }, zap.NewNop())

	select {
	case v := <-handled:
		assert.JSONEq(t, `{"source":"aws.s3"}`, string(v))
	case <-time.After(time.Second):
		t.Fatal("message was not handled")
	}
}
