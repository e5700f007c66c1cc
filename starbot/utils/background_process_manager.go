package utils

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// BackgroundProcessManager owns the long running loops of the bot, such as
// the giveaway sweeper, and stops them together on shutdown.
type BackgroundProcessManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	processes map[string]*process
}

type process struct {
	description string
	cancel      context.CancelFunc
}

func NewBackgroundProcessManager() *BackgroundProcessManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundProcessManager{
		ctx:       ctx,
		cancel:    cancel,
		processes: make(map[string]*process),
	}
}

// StartProcess runs fn in its own goroutine until its context is cancelled.
// A process already registered under name is stopped first.
func (bpm *BackgroundProcessManager) StartProcess(name, description string, fn func(ctx context.Context)) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if bpm.ctx.Err() != nil {
		slog.Warn("Process manager is shut down, process not started",
			slog.String("type", "sys"),
			slog.String("process", name))
		return
	}
	if _, exists := bpm.processes[name]; exists {
		slog.Warn("Process already exists, stopping existing one",
			slog.String("type", "sys"),
			slog.String("process", name))
		bpm.stopLocked(name)
	}

	ctx, cancel := context.WithCancel(bpm.ctx)
	bpm.processes[name] = &process{description: description, cancel: cancel}

	bpm.wg.Add(1)
	go func() {
		defer bpm.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background process panic",
					slog.String("type", "sys"),
					slog.String("process", name),
					slog.Any("panic", r))
			}
		}()

		slog.Info("Starting background process",
			slog.String("type", "sys"),
			slog.String("process", name),
			slog.String("description", description))
		fn(ctx)
		slog.Info("Background process ended",
			slog.String("type", "sys"),
			slog.String("process", name))
	}()
}

func (bpm *BackgroundProcessManager) stopLocked(name string) {
	if p, exists := bpm.processes[name]; exists {
		p.cancel()
		delete(bpm.processes, name)
	}
}

// Shutdown cancels every process and waits for them until ctx is done.
func (bpm *BackgroundProcessManager) Shutdown(ctx context.Context) error {
	bpm.mu.Lock()
	count := len(bpm.processes)
	bpm.cancel()
	clear(bpm.processes)
	bpm.mu.Unlock()

	slog.Info("Shutting down background processes",
		slog.String("type", "sys"),
		slog.Int("process_count", count))

	done := make(chan struct{})
	go func() {
		bpm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.Warn("Timeout waiting for background processes to stop",
			slog.String("type", "sys"))
		return ctx.Err()
	}
}

// Running returns the names of the registered processes in sorted order.
func (bpm *BackgroundProcessManager) Running() []string {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	names := make([]string, 0, len(bpm.processes))
	for name := range bpm.processes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
