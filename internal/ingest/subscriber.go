package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/learner"
)

// QueueGroup load-balances submissions across contentfactory instances.
const QueueGroup = "contentfactory-learner"

// Recorder stores one metric submission.
type Recorder interface {
	RecordMetrics(ctx context.Context, contentID string, m learner.Metrics) (*learner.PerformanceRecord, error)
}

// Submission is the message body on the metrics subject.
type Submission struct {
	ContentID string `json:"content_id"`
	learner.Metrics
}

// Ack is the reply to a request-reply submission.
type Ack struct {
	OK       bool    `json:"ok"`
	RecordID string  `json:"record_id,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Promoted bool    `json:"promoted,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Subscriber feeds metric submissions from NATS into a Recorder.
type Subscriber struct {
	nc       *nats.Conn
	subject  string
	recorder Recorder
	timeout  time.Duration
	logger   *zap.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewSubscriber creates a Subscriber. A zero timeout defaults to 10s per message.
func NewSubscriber(nc *nats.Conn, subject string, recorder Recorder, timeout time.Duration, logger *zap.Logger) (*Subscriber, error) {
	if nc == nil || recorder == nil {
		return nil, errors.New("ingest: connection and recorder are required")
	}
	if subject == "" {
		return nil, errors.New("ingest: subject is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		nc:       nc,
		subject:  subject,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.Named("ingest"),
	}, nil
}

// Start subscribes. Calling Start twice is an error.
func (s *Subscriber) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return errors.New("ingest: subscriber already started")
	}
	sub, err := s.nc.QueueSubscribe(s.subject, QueueGroup, s.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("metrics subscriber started", zap.String("subject", s.subject))
	return nil
}

// Stop drains the subscription so in-flight messages finish.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	err := s.sub.Drain()
	s.sub = nil
	return err
}

func (s *Subscriber) handle(msg *nats.Msg) {
	ack := s.process(msg.Data)
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(ack)
	if err != nil {
		s.logger.Error("marshal ack", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("ack not delivered", zap.Error(err))
	}
}

func (s *Subscriber) process(data []byte) Ack {
	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		s.logger.Warn("malformed metrics submission", zap.Error(err))
		submissionsTotal.WithLabelValues("malformed").Inc()
		return Ack{Error: "malformed submission"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rec, err := s.recorder.RecordMetrics(ctx, sub.ContentID, sub.Metrics)
	if err != nil {
		s.logger.Warn("metrics submission rejected", zap.String("content_id", sub.ContentID), zap.Error(err))
		submissionsTotal.WithLabelValues("rejected").Inc()
		return Ack{Error: err.Error()}
	}
	submissionsTotal.WithLabelValues("recorded").Inc()
	ack := Ack{OK: true, RecordID: rec.ID, Score: rec.Score}
	if rec.Promotion != nil {
		ack.Promoted = rec.Promotion.Promoted
	}
	return ack
}
