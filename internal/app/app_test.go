package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/PbVrCt/serverless-chat-demo/internal/app/tasks"
	"github.com/PbVrCt/serverless-chat-demo/internal/config"
	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Addr:              "127.0.0.1:0",
		RequestTimeout:    time.Second,
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}
}

func TestAppServesUntilCancelled(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	sched, err := NewScheduler(discardLogger(), &config.SchedulerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	a := New(discardLogger(), testServerConfig(), handler, sched)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/"
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil after cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}
}

func TestAppRunFailsOnBadAddress(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig()
	cfg.Addr = "not-an-address"
	a := New(discardLogger(), cfg, http.NotFoundHandler(), nil)

	if err := a.Run(context.Background()); err == nil {
		t.Error("Run() with invalid address succeeded")
	}
}

func TestNewSchedulerRegistersEnabledTasks(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"nightly":  noop,
		"disabled": noop,
		"hourly":   noop,
	}
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"nightly":  {Enabled: true, Schedule: "0 0 3 * * *"},
		"disabled": {Enabled: false},
		"hourly":   {Enabled: true, Schedule: "0 0 * * * *"},
		// Disabled entries are not looked up in the registry.
		"retired": {Enabled: false, Schedule: "0 0 3 * * *"},
	}}

	s, err := NewScheduler(discardLogger(), cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if jobs := s.Jobs(); len(jobs) != 2 || jobs[0] != "hourly" || jobs[1] != "nightly" {
		t.Errorf("Jobs() = %v, want [hourly nightly]", jobs)
	}
}

func TestNewSchedulerRejectsInvalidTasks(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	tests := []struct {
		name string
		task config.TaskConfig
	}{
		{"unknown", config.TaskConfig{Enabled: true, Schedule: "0 0 3 * * *"}},
		{"known", config.TaskConfig{Enabled: true}},
		{"known", config.TaskConfig{Enabled: true, Schedule: "whenever"}},
		{"known", config.TaskConfig{Enabled: true, Schedule: "0 3 * * *"}},
	}

	for _, tc := range tests {
		cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{tc.name: tc.task}}
		_, err := NewScheduler(discardLogger(), cfg, map[string]tasks.ScheduledTaskFunc{"known": noop})
		if !errors.Is(err, errs.ErrConfig) {
			t.Errorf("NewScheduler(%s %+v) error = %v, want ErrConfig", tc.name, tc.task, err)
		}
	}
}

func TestSchedulerRunsTaskUntilCancelled(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	taskCtxDone := make(chan struct{})
	var once sync.Once
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"tick": func(ctx context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			go func() {
				<-ctx.Done()
				once.Do(func() { close(taskCtxDone) })
			}()
			return errors.New("failures are logged, not fatal")
		},
	}
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"tick": {Enabled: true, Schedule: "* * * * * *"},
	}}

	s, err := NewScheduler(discardLogger(), cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("task did not run within 3s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}

	select {
	case <-taskCtxDone:
	case <-time.After(time.Second):
		t.Error("task context was not cancelled on shutdown")
	}
}
