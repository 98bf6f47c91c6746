package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/skuprice/internal/domain/run"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
)

type fakeRunner struct {
	mu       sync.Mutex
	triggers []run.Trigger
	called   chan struct{}
	// delay keeps Run busy regardless of cancellation
	delay    time.Duration
	finished bool
}

func (f *fakeRunner) Run(ctx context.Context, trigger run.Trigger) (*run.Report, error) {
	f.mu.Lock()
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()
	select {
	case f.called <- struct{}{}:
	default:
	}
	time.Sleep(f.delay)
	f.mu.Lock()
	f.finished = true
	f.mu.Unlock()
	return &run.Report{ID: uuid.New(), Trigger: trigger, Status: run.StatusCompleted}, nil
}

func TestScheduler_RunOnStart(t *testing.T) {
	runner := &fakeRunner{called: make(chan struct{}, 1)}
	s := NewScheduler(runner, "0 0 1 1 *", true, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-runner.called:
	case <-time.After(5 * time.Second):
		t.Fatal("startup run was not triggered")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.triggers) != 1 || runner.triggers[0] != run.TriggerStartup {
		t.Errorf("triggers = %v, want [startup]", runner.triggers)
	}
}

func TestScheduler_Schedule(t *testing.T) {
	runner := &fakeRunner{called: make(chan struct{}, 1)}
	s := NewScheduler(runner, "@every 1s", false, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	select {
	case <-runner.called:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run was not triggered")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.triggers[0] != run.TriggerSchedule {
		t.Errorf("trigger = %s, want schedule", runner.triggers[0])
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, "not a schedule", false, logger.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() expected error for invalid schedule")
	}
}

func TestScheduler_StartWaitsForStartupRun(t *testing.T) {
	runner := &fakeRunner{called: make(chan struct{}, 1), delay: 300 * time.Millisecond}
	s := NewScheduler(runner, "0 0 1 1 *", true, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-runner.called:
	case <-time.After(5 * time.Second):
		t.Fatal("startup run was not triggered")
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if !runner.finished {
		t.Error("Start() returned before the startup run finished")
	}
}
