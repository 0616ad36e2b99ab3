package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type runnerFunc func(context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunFailsFastOnUnhealthyDependency(t *testing.T) {
	started := false
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: []Dependency{{Name: "database", Pinger: stubPinger{}}, {Name: "redis", Pinger: stubPinger{err: errors.New("refused")}}},
		Consumers: map[string]runner{"notifications": runnerFunc(func(ctx context.Context) error {
			started = true
			return nil
		})},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorContains(t, err, "redis ping failed")
	require.False(t, started)
}

func TestRunStopsAllConsumersWhenOneFails(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger: testLogger(),
		Consumers: map[string]runner{
			"healthy": runnerFunc(blockUntilDone),
			"broken":  runnerFunc(func(context.Context) error { return errors.New("subscription deleted") }),
		},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()
	select {
	case err := <-done:
		require.ErrorContains(t, err, "broken: subscription deleted")
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after consumer failure")
	}
}

func TestRunReturnsCanceledOnShutdown(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: map[string]runner{"notifications": runnerFunc(blockUntilDone)},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}
