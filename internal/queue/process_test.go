package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return nil
}

func TestParseIngestJob(t *testing.T) {
	job, err := ParseIngestJob([]byte(`{"job_id": "j1", "config_path": "/data/PathProperty.properties"}`))
	require.NoError(t, err)
	assert.Equal(t, "/data/PathProperty.properties", job.ConfigPath)

	for _, body := range []string{`{"job_id": "j1"}`, `not json`, `{"config_path": "x"}`} {
		_, err := ParseIngestJob([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestProcessIngestMessage(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("rice.ttl", "s1 type <Gene> .\ns1 relatesTo _s2 .\n_s2 type <Gene> .\n")
	write("ttl.list", "rice.ttl\n")
	write("run.properties", "MT2N_TTL_PATH=ttl.list\n")

	body, err := json.Marshal(IngestJobMsg{JobID: "j1", ConfigPath: filepath.Join(dir, "run.properties"), RunID: "run-7"})
	require.NoError(t, err)
	pub := &fakePublisher{}

	require.NoError(t, ProcessIngestMessage(context.Background(), ProcessParams{Publisher: pub}, body))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, Exchange, pub.messages[0].exchange)
	assert.Equal(t, GraphBuiltTopic, pub.messages[0].key)

	var event GraphBuiltMsg
	require.NoError(t, json.Unmarshal(pub.messages[0].msg.Body, &event))
	assert.Equal(t, "j1", event.JobID)
	assert.Equal(t, "run-7", event.RunID)
	assert.Equal(t, 2, event.Vertices)
	assert.Equal(t, 1, event.Edges)
}

type fakeLocker struct {
	runIDs []string
	err    error
}

func (l *fakeLocker) WithRunLock(ctx context.Context, runID string, fn func(ctx context.Context) error) error {
	l.runIDs = append(l.runIDs, runID)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

func writeRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rice.ttl"), []byte("s1 type <Gene> .\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ttl.list"), []byte("rice.ttl\n"), 0o644))
	path := filepath.Join(dir, "run.properties")
	require.NoError(t, os.WriteFile(path, []byte("MT2N_TTL_PATH=ttl.list\n"), 0o644))
	return path
}

func TestProcessIngestMessageLocksExplicitRunID(t *testing.T) {
	cfgPath := writeRun(t)
	locker := &fakeLocker{}
	pub := &fakePublisher{}

	withRunID, err := json.Marshal(IngestJobMsg{JobID: "j1", ConfigPath: cfgPath, RunID: "run-7"})
	require.NoError(t, err)
	withoutRunID, err := json.Marshal(IngestJobMsg{JobID: "j2", ConfigPath: cfgPath})
	require.NoError(t, err)

	params := ProcessParams{Publisher: pub, Locker: locker}
	require.NoError(t, ProcessIngestMessage(context.Background(), params, withRunID))
	require.NoError(t, ProcessIngestMessage(context.Background(), params, withoutRunID))

	assert.Equal(t, []string{"run-7"}, locker.runIDs)
	assert.Len(t, pub.messages, 2)
}

func TestProcessIngestMessageBusyRun(t *testing.T) {
	body, err := json.Marshal(IngestJobMsg{JobID: "j1", ConfigPath: writeRun(t), RunID: "run-7"})
	require.NoError(t, err)
	busy := errors.New("run is being built by another worker")
	pub := &fakePublisher{}

	err = ProcessIngestMessage(context.Background(), ProcessParams{Publisher: pub, Locker: &fakeLocker{err: busy}}, body)
	require.ErrorIs(t, err, busy)
	assert.Empty(t, pub.messages)
}

func TestProcessIngestMessageMissingConfig(t *testing.T) {
	body := []byte(`{"job_id": "j1", "config_path": "/nonexistent/run.properties"}`)
	pub := &fakePublisher{}

	assert.Error(t, ProcessIngestMessage(context.Background(), ProcessParams{Publisher: pub}, body))
	assert.Empty(t, pub.messages)
}

func TestHandleFailure(t *testing.T) {
	ack := &fakeAcknowledger{}
	msg := amqp091.Delivery{Acknowledger: ack, Body: []byte(`{"job_id":"j1"}`), Headers: amqp091.Table{"source": "api"}}
	pub := &fakePublisher{}

	HandleFailure(pub, msg, errors.New("referential integrity"))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, IngestDLQ, pub.messages[0].key)
	assert.Equal(t, "referential integrity", pub.messages[0].msg.Headers["x-error"])
	assert.Equal(t, "api", pub.messages[0].msg.Headers["source"])
	assert.True(t, ack.acked)
	assert.NotContains(t, msg.Headers, "x-error")
}

func TestHandleFailureRequeuesWhenDLQUnavailable(t *testing.T) {
	ack := &fakeAcknowledger{}
	msg := amqp091.Delivery{Acknowledger: ack}

	HandleFailure(&fakePublisher{err: errors.New("channel closed")}, msg, errors.New("boom"))

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestSettle(t *testing.T) {
	t.Run("success acks", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		pub := &fakePublisher{}

		Settle(context.Background(), pub, amqp091.Delivery{Acknowledger: ack}, nil)

		assert.True(t, ack.acked)
		assert.False(t, ack.nacked)
		assert.Empty(t, pub.messages)
	})

	t.Run("shutdown requeues without dead lettering", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ack := &fakeAcknowledger{}
		pub := &fakePublisher{}

		err := fmt.Errorf("failed to read tsv: %w", context.Canceled)
		Settle(ctx, pub, amqp091.Delivery{Acknowledger: ack}, err)

		assert.Empty(t, pub.messages)
		assert.False(t, ack.acked)
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeue)
	})

	t.Run("cancellation outside shutdown is dead lettered", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		pub := &fakePublisher{}

		Settle(context.Background(), pub, amqp091.Delivery{Acknowledger: ack}, context.Canceled)

		require.Len(t, pub.messages, 1)
		assert.Equal(t, IngestDLQ, pub.messages[0].key)
		assert.True(t, ack.acked)
	})

	t.Run("failure is dead lettered", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		pub := &fakePublisher{}

		Settle(context.Background(), pub, amqp091.Delivery{Acknowledger: ack}, errors.New("unknown edge target"))

		require.Len(t, pub.messages, 1)
		assert.Equal(t, "unknown edge target", pub.messages[0].msg.Headers["x-error"])
		assert.True(t, ack.acked)
		assert.False(t, ack.nacked)
	})
}

func TestPublishFIFO(t *testing.T) {
	pub := &fakePublisher{}

	require.NoError(t, PublishFIFO(pub, IngestQueue, []byte("{}")))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "", pub.messages[0].exchange)
	assert.Equal(t, IngestQueue, pub.messages[0].key)
	assert.Equal(t, amqp091.Persistent, pub.messages[0].msg.DeliveryMode)
}
