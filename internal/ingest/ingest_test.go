package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contentfactory/internal/embeddings"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

const subject = "contentfactory.metrics.submit"

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func connect(t *testing.T) *nats.Conn {
	t.Helper()
	server := startTestNATSServer(t)
	nc, err := Connect(server.ClientURL(), nil)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []Submission
	err   error
}

func (f *fakeRecorder) RecordMetrics(_ context.Context, id string, m learner.Metrics) (*learner.PerformanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Submission{ContentID: id, Metrics: m})
	if f.err != nil {
		return nil, f.err
	}
	return &learner.PerformanceRecord{ID: "perf_" + id, ContentID: id, Score: 0.42}, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func request(t *testing.T, nc *nats.Conn, body any) Ack {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	msg, err := nc.Request(subject, data, 2*time.Second)
	require.NoError(t, err)
	var ack Ack
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	return ack
}

func TestNewSubscriber_Validation(t *testing.T) {
	_, err := NewSubscriber(nil, subject, &fakeRecorder{}, 0, nil)
	assert.Error(t, err)

	nc := connect(t)
	_, err = NewSubscriber(nc, "", &fakeRecorder{}, 0, nil)
	assert.Error(t, err)
}

func TestSubscriber_RequestReply(t *testing.T) {
	nc := connect(t)
	rec := &fakeRecorder{}
	sub, err := NewSubscriber(nc, subject, rec, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, sub.Start())
	t.Cleanup(func() { _ = sub.Stop() })

	ack := request(t, nc, Submission{
		ContentID: "seedance_x_dev_1",
		Metrics:   learner.Metrics{Reach: 1000, Likes: 40, Sentiment: learner.SentimentPositive},
	})

	assert.True(t, ack.OK)
	assert.Equal(t, "perf_seedance_x_dev_1", ack.RecordID)
	assert.InDelta(t, 0.42, ack.Score, 1e-9)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, 1000, rec.calls[0].Reach)
	assert.Equal(t, learner.SentimentPositive, rec.calls[0].Sentiment)
}

func TestSubscriber_RejectsMalformedAndFailed(t *testing.T) {
	nc := connect(t)
	rec := &fakeRecorder{err: learner.ErrInvalidMetrics}
	sub, err := NewSubscriber(nc, subject, rec, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, sub.Start())
	t.Cleanup(func() { _ = sub.Stop() })

	msg, err := nc.Request(subject, []byte("{not json"), 2*time.Second)
	require.NoError(t, err)
	var ack Ack
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	assert.False(t, ack.OK)
	assert.Equal(t, "malformed submission", ack.Error)
	assert.Equal(t, 0, rec.count())

	ack = request(t, nc, map[string]any{"content_id": "c1", "reach": -5})
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "invalid metrics")
}

func TestSubscriber_FireAndForget(t *testing.T) {
	nc := connect(t)
	rec := &fakeRecorder{}
	sub, err := NewSubscriber(nc, subject, rec, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, sub.Start())
	assert.Error(t, sub.Start())

	data, err := json.Marshal(Submission{ContentID: "c1"})
	require.NoError(t, err)
	require.NoError(t, nc.Publish(subject, data))
	require.NoError(t, nc.Flush())

	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, sub.Stop())
	require.NoError(t, sub.Stop())
}

func TestSubscriber_PromotesThroughLearner(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: 32}, nil)
	require.NoError(t, err)
	emb, err := embeddings.NewHashProvider(32)
	require.NoError(t, err)
	svc, err := retrieval.NewService(store, emb, retrieval.Config{MaxRetries: -1}, nil)
	require.NoError(t, err)
	l, err := learner.New(svc, learner.Config{}, nil)
	require.NoError(t, err)

	text := "Seedance turns a prompt into a cinematic clip."
	v, err := emb.Embed(ctx, text)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, vectorstore.CollectionHistory, vectorstore.Record{
		ID: "seedance_x_dev_1", Text: text, Embedding: v,
		Metadata: map[string]string{retrieval.MetaContentType: "x_dev"},
	}))

	nc := connect(t)
	sub, err := NewSubscriber(nc, subject, l, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, sub.Start())
	t.Cleanup(func() { _ = sub.Stop() })

	ack := request(t, nc, Submission{
		ContentID: "seedance_x_dev_1",
		Metrics:   learner.Metrics{Reach: 20000, Likes: 20000, Conversions: 500, Sentiment: learner.SentimentPositive},
	})

	require.True(t, ack.OK, ack.Error)
	assert.True(t, ack.Promoted)
	style, err := store.Get(ctx, vectorstore.CollectionStyleExamples, learner.StyleID("seedance_x_dev_1"))
	require.NoError(t, err)
	assert.Equal(t, text, style.Text)
}

func TestEventPublisher(t *testing.T) {
	nc := connect(t)
	const events = "contentfactory.runs.completed"
	pub, err := NewEventPublisher(nc, events)
	require.NoError(t, err)

	inbox, err := nc.SubscribeSync(events)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	ev := orchestrator.RunCompleted{
		RunID:       "run-1",
		Succeeded:   true,
		ProductName: "Seedance",
		ContentIDs:  []string{"seedance_blog_1"},
		StartedAt:   time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
		ElapsedMS:   1200,
	}
	require.NoError(t, pub.RunCompleted(context.Background(), ev))

	msg, err := inbox.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var got orchestrator.RunCompleted
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, ev, got)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(pub.RunCompleted(cancelled, ev), context.Canceled))

	_, err = NewEventPublisher(nc, "")
	assert.Error(t, err)
}
