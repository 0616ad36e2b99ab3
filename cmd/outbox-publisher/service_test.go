package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/registry"
)

func orderEvent(eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		AttemptCount:  attempts,
	}
}

func TestProcessBatchSettlesEachRowIndependently(t *testing.T) {
	ok := orderEvent(enums.EventOrderCreated, 0)
	flaky := orderEvent(enums.EventOrderStatusChanged, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{ok, flaky}}
	pub := &fakePublisher{errs: map[string]error{flaky.AggregateID.String(): errors.New("transient")}}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, repo, pub, &fakeRegistry{}, &fakeDLQRepo{}, metrics.NewOutboxMetrics(reg), nil)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report processed")
	}
	if len(repo.published) != 1 || repo.published[0] != ok.ID {
		t.Fatalf("unexpected published rows %v", repo.published)
	}
	if len(repo.failed) != 1 || repo.failed[0] != flaky.ID {
		t.Fatalf("unexpected failed rows %v", repo.failed)
	}
	if pub.count() != 2 {
		t.Fatalf("expected 2 publishes, got %d", pub.count())
	}
	if got := sample(t, reg, string(enums.EventOrderCreated), metrics.OutboxPublished); got != 1 {
		t.Fatalf("published counter = %v", got)
	}
	if got := sample(t, reg, string(enums.EventOrderStatusChanged), metrics.OutboxRetry); got != 1 {
		t.Fatalf("retry counter = %v", got)
	}
}

func TestProcessBatchEmptyReportsIdle(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil, nil)
	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if processed {
		t.Fatal("expected idle batch")
	}
}

func TestProcessBatchCarriesEventAttributes(t *testing.T) {
	event := orderEvent(enums.EventOrderCreated, 0)
	pub := &fakePublisher{}
	svc := newTestService(t, &fakeRepo{events: []models.OutboxEvent{event}}, pub, &fakeRegistry{}, &fakeDLQRepo{}, nil, nil)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	msgs := pub.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	attrs := msgs[0].Attributes
	if attrs["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("event_type = %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("aggregate_id = %q", attrs["aggregate_id"])
	}
	if attrs["event_id"] == "" {
		t.Fatal("expected event_id attribute")
	}
	if pub.topic != "fanjava-domain" {
		t.Fatalf("published to %q", pub.topic)
	}
}

func TestProcessBatchWritesDLQOnNonRetryable(t *testing.T) {
	event := orderEvent(enums.EventOrderCreated, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{errs: map[string]error{
		event.AggregateID.String(): registry.NewNonRetryableError(errors.New("bad payload")),
	}}
	svc := newTestService(t, repo, pub, &fakeRegistry{}, dlq, nil, nil)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected dlq entries %+v", dlq.entries)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row marked terminal, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("non-retryable rows must not be retried")
	}
}

func TestProcessBatchUnknownEventGoesStraightToDLQ(t *testing.T) {
	event := orderEvent("mystery.happened", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub, &fakeRegistry{}, dlq, nil, nil)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if pub.count() != 0 {
		t.Fatalf("unresolvable events must not be published")
	}
	if len(dlq.entries) != 1 || dlq.entries[0].EventID != event.ID {
		t.Fatalf("unexpected dlq entries %+v", dlq.entries)
	}
}

func TestProcessBatchWritesDLQOnMaxAttempts(t *testing.T) {
	event := orderEvent(enums.EventOrderStatusChanged, 2)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{errs: map[string]error{event.AggregateID.String(): errors.New("timeout")}}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, repo, pub, &fakeRegistry{}, dlq, metrics.NewOutboxMetrics(reg), &config.OutboxConfig{MaxAttempts: 3})

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected dlq entries %+v", dlq.entries)
	}
	if repo.terminalAttempts != 3 {
		t.Fatalf("expected terminal attempts 3, got %d", repo.terminalAttempts)
	}
	if got := sample(t, reg, string(enums.EventOrderStatusChanged), metrics.OutboxDLQ); got != 1 {
		t.Fatalf("dlq counter = %v", got)
	}
}

func TestProcessBatchPropagatesMarkFailure(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{orderEvent(enums.EventOrderCreated, 0)},
		publishErr: errors.New("db gone"),
	}
	svc := newTestService(t, repo, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil, nil)

	if _, err := svc.processBatch(context.Background()); err == nil {
		t.Fatal("expected mark error to abort the batch")
	}
}

func TestJudgeClassifiesDeliveries(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil, &config.OutboxConfig{MaxAttempts: 3})
	transient := errors.New("timeout")

	cases := []struct {
		name    string
		d       delivery
		verdict verdict
		reason  enums.OutboxDLQErrorReason
	}{
		{"published", delivery{event: orderEvent(enums.EventOrderCreated, 0)}, verdictPublished, ""},
		{"retry", delivery{event: orderEvent(enums.EventOrderCreated, 1), err: transient}, verdictRetry, ""},
		{"exhausted", delivery{event: orderEvent(enums.EventOrderCreated, 2), err: transient}, verdictDeadLetter, enums.OutboxDLQReasonMaxAttempts},
		{"permanent", delivery{event: orderEvent(enums.EventOrderCreated, 0), err: registry.NewNonRetryableError(transient)}, verdictDeadLetter, enums.OutboxDLQReasonNonRetryable},
	}
	for _, tc := range cases {
		v, reason := svc.judge(tc.d)
		if v != tc.verdict || reason != tc.reason {
			t.Fatalf("%s: got %v %q", tc.name, v, reason)
		}
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("first backoff = %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("capped backoff = %s", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub *fakePublisher, resolver registryResolver, dlq dlqRepository, m *metrics.OutboxMetrics, outboxCfg *config.OutboxConfig) *Service {
	t.Helper()
	cfg := &config.Config{
		Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: 5},
	}
	if outboxCfg != nil {
		cfg.Outbox = *outboxCfg
	}
	svc, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:            fakeDB{},
		PubSub:        fakePubSubClient{},
		Repository:    repo,
		Registry:      resolver,
		DLQRepository: dlq,
		Metrics:       m,
		PublisherFactory: func(topic string) publisher {
			pub.mu.Lock()
			pub.topic = topic
			pub.mu.Unlock()
			return pub
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func sample(t *testing.T, reg *prometheus.Registry, eventType, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "fanjava_outbox_publish_results_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["event_type"] == eventType && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

type fakeRepo struct {
	events           []models.OutboxEvent
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
	publishErr       error
}

func (f *fakeRepo) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = terminalAttempts
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

// fakePublisher fails messages by aggregate id so results do not depend on publish order.
type fakePublisher struct {
	mu    sync.Mutex
	errs  map[string]error
	msgs  []*gcppubsub.Message
	topic string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return fakePublishResult{err: f.errs[msg.Attributes["aggregate_id"]]}
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func (f *fakePublisher) sent() []*gcppubsub.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gcppubsub.Message(nil), f.msgs...)
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

// fakeRegistry resolves the order events and rejects anything else.
type fakeRegistry struct{}

func (fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	switch event.EventType {
	case enums.EventOrderCreated, enums.EventOrderStatusChanged:
	default:
		return nil, registry.NewNonRetryableError(errors.New("unsupported event type"))
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         "fanjava-domain",
		},
		Envelope: outbox.PayloadEnvelope{
			Version:    1,
			EventID:    uuid.NewString(),
			EventType:  string(event.EventType),
			OccurredAt: time.Now(),
		},
	}, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
