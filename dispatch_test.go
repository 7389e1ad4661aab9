package planllama_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	planllama "github.com/BaudehloBiz/planllama-go"
	"github.com/BaudehloBiz/planllama-go/channel/memory"
	"github.com/BaudehloBiz/planllama-go/job"
	"github.com/BaudehloBiz/planllama-go/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStartedClient builds a client on a fresh memory channel and starts it.
func newStartedClient(t *testing.T) (*planllama.Client, *memory.Channel) {
	t.Helper()

	mem := memory.New()
	c := planllama.New(mem, planllama.WithLogger(testLogger()))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start client: %v", err)
	}
	return c, mem
}

// scriptDispatch acks every dispatch with the given job id.
func scriptDispatch(mem *memory.Channel, jobID string) {
	mem.Script(wire.MethodDispatch, func(json.RawMessage) (any, error) {
		return wire.DispatchAck{Status: wire.StatusSuccess, JobID: jobID}, nil
	})
}

// decodeDispatch unpacks the nth recorded dispatch request.
func decodeDispatch(t *testing.T, mem *memory.Channel, n int) wire.DispatchRequest {
	t.Helper()

	reqs := mem.Requests()
	if len(reqs) <= n {
		t.Fatalf("want at least %d requests, got %d", n+1, len(reqs))
	}
	if reqs[n].Method != wire.MethodDispatch {
		t.Fatalf("request %d: want method %s, got %s", n, wire.MethodDispatch, reqs[n].Method)
	}

	var req wire.DispatchRequest
	if err := json.Unmarshal(reqs[n].Data, &req); err != nil {
		t.Fatalf("decode dispatch request: %v", err)
	}
	return req
}

func TestDispatch_Success(t *testing.T) {
	c, mem := newStartedClient(t)
	scriptDispatch(mem, "job_42")

	jobID, err := c.Dispatch(context.Background(), "send-email", map[string]string{"to": "a@b.c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job_42" {
		t.Errorf("job id: want %q, got %q", "job_42", jobID)
	}

	req := decodeDispatch(t, mem, 0)
	if req.Name != "send-email" {
		t.Errorf("name: want %q, got %q", "send-email", req.Name)
	}
	var payload map[string]string
	if err := json.Unmarshal(req.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["to"] != "a@b.c" {
		t.Errorf("payload: want to=a@b.c, got %v", payload)
	}
}

func TestDispatch_RequiresStartedClient(t *testing.T) {
	mem := memory.New()
	c := planllama.New(mem, planllama.WithLogger(testLogger()))

	_, err := c.Dispatch(context.Background(), "send-email", nil)
	if !errors.Is(err, planllama.ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if len(mem.Requests()) != 0 {
		t.Errorf("nothing should be sent before Start, got %d requests", len(mem.Requests()))
	}
}

func TestDispatch_ServerRejectionSurfacesVerbatim(t *testing.T) {
	c, mem := newStartedClient(t)
	mem.Script(wire.MethodDispatch, func(json.RawMessage) (any, error) {
		return wire.DispatchAck{Status: wire.StatusError, Error: "queue full"}, nil
	})

	_, err := c.Dispatch(context.Background(), "send-email", nil)
	if err == nil || err.Error() != "queue full" {
		t.Fatalf("expected server message verbatim, got %v", err)
	}
}

func TestDispatch_AckMissingJobID(t *testing.T) {
	c, mem := newStartedClient(t)
	mem.Script(wire.MethodDispatch, func(json.RawMessage) (any, error) {
		return wire.DispatchAck{Status: wire.StatusSuccess}, nil
	})

	_, err := c.Dispatch(context.Background(), "send-email", nil)
	if !errors.Is(err, planllama.ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestDispatch_GarbageAck(t *testing.T) {
	c, mem := newStartedClient(t)
	mem.Script(wire.MethodDispatch, func(json.RawMessage) (any, error) {
		return 42, nil
	})

	_, err := c.Dispatch(context.Background(), "send-email", nil)
	if !errors.Is(err, planllama.ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestDispatch_OptionsForwarded(t *testing.T) {
	c, mem := newStartedClient(t)
	scriptDispatch(mem, "job_1")

	_, err := c.Dispatch(context.Background(), "resize-image", nil,
		job.WithDeadline(30*time.Second),
		job.WithPriority(5),
		job.WithMaxRetries(2),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := decodeDispatch(t, mem, 0)
	if req.Options == nil {
		t.Fatal("options missing from dispatch request")
	}
	if req.Options.Deadline != 30 {
		t.Errorf("deadline: want 30, got %d", req.Options.Deadline)
	}
	if req.Options.Priority != 5 {
		t.Errorf("priority: want 5, got %d", req.Options.Priority)
	}
	if req.Options.MaxRetries != 2 {
		t.Errorf("max retries: want 2, got %d", req.Options.MaxRetries)
	}
	if req.Options.NotifyCompletion {
		t.Error("plain Dispatch must not request completion notifications")
	}
}

func TestDispatchAndWait_Success(t *testing.T) {
	c, mem := newStartedClient(t)
	scriptDispatch(mem, "job_7")
	ctx := context.Background()

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := c.DispatchAndWait(ctx, "charge-card", map[string]int{"cents": 995})
		done <- result{raw, err}
	}()

	// Wait for the dispatch to reach the server, then report the outcome.
	waitFor(t, time.Second, func() bool { return len(mem.Requests()) == 1 })
	if err := mem.EmitJobCompleted(ctx, "job_7", map[string]string{"receipt": "r_1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	var receipt map[string]string
	if err := json.Unmarshal(res.raw, &receipt); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if receipt["receipt"] != "r_1" {
		t.Errorf("result: want receipt=r_1, got %v", receipt)
	}

	req := decodeDispatch(t, mem, 0)
	if req.Options == nil || !req.Options.NotifyCompletion {
		t.Error("DispatchAndWait must request completion notifications")
	}
}

func TestDispatchAndWait_NotificationBeforeAwait(t *testing.T) {
	c, mem := newStartedClient(t)
	ctx := context.Background()

	// The server finishes the job and notifies before the dispatch ack
	// even returns. The stash keeps the outcome until the caller
	// registers for it.
	mem.Script(wire.MethodDispatch, func(json.RawMessage) (any, error) {
		if err := mem.EmitJobCompleted(ctx, "job_9", "instant"); err != nil {
			return nil, err
		}
		return wire.DispatchAck{Status: wire.StatusSuccess, JobID: "job_9"}, nil
	})

	raw, err := c.DispatchAndWait(ctx, "noop", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `"instant"` {
		t.Errorf("result: want %q, got %s", `"instant"`, raw)
	}
}

func TestDispatchAndWait_JobFailure(t *testing.T) {
	c, mem := newStartedClient(t)
	scriptDispatch(mem, "job_7")
	ctx := context.Background()

	errs := make(chan error, 1)
	go func() {
		_, err := c.DispatchAndWait(ctx, "charge-card", nil)
		errs <- err
	}()

	waitFor(t, time.Second, func() bool { return len(mem.Requests()) == 1 })
	if err := mem.EmitJobFailed(ctx, "job_7", "card declined"); err != nil {
		t.Fatalf("emit: %v", err)
	}

	err := <-errs
	if err == nil || err.Error() != "card declined" {
		t.Fatalf("expected failure message verbatim, got %v", err)
	}
}

func TestDispatchAndWait_FailureWithoutMessage(t *testing.T) {
	c, mem := newStartedClient(t)
	scriptDispatch(mem, "job_7")
	ctx := context.Background()

	errs := make(chan error, 1)
	go func() {
		_, err := c.DispatchAndWait(ctx, "charge-card", nil)
		errs <- err
	}()

	waitFor(t, time.Second, func() bool { return len(mem.Requests()) == 1 })
	if err := mem.EmitJobFailed(ctx, "job_7", ""); err != nil {
		t.Fatalf("emit: %v", err)
	}

	if err := <-errs; !errors.Is(err, planllama.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
}

func TestDispatchAndWait_ContextCancelled(t *testing.T) {
	c, mem := newStartedClient(t)
	scriptDispatch(mem, "job_7")

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := c.DispatchAndWait(ctx, "charge-card", nil)
		errs <- err
	}()

	waitFor(t, time.Second, func() bool { return len(mem.Requests()) == 1 })
	cancel()

	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSchedule_Success(t *testing.T) {
	c, mem := newStartedClient(t)
	mem.Script(wire.MethodSchedule, func(json.RawMessage) (any, error) {
		return wire.ScheduleAck{Status: wire.StatusSuccess}, nil
	})

	err := c.Schedule(context.Background(), "daily-report", "0 6 * * *", map[string]string{"tz": "UTC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := mem.Requests()
	if len(reqs) != 1 || reqs[0].Method != wire.MethodSchedule {
		t.Fatalf("expected one %s request, got %+v", wire.MethodSchedule, reqs)
	}
	var req wire.ScheduleRequest
	if err := json.Unmarshal(reqs[0].Data, &req); err != nil {
		t.Fatalf("decode schedule request: %v", err)
	}
	if req.Name != "daily-report" || req.CronPattern != "0 6 * * *" {
		t.Errorf("schedule request: got %+v", req)
	}
}

func TestSchedule_DescriptorPattern(t *testing.T) {
	c, mem := newStartedClient(t)
	mem.Script(wire.MethodSchedule, func(json.RawMessage) (any, error) {
		return wire.ScheduleAck{Status: wire.StatusSuccess}, nil
	})

	if err := c.Schedule(context.Background(), "heartbeat", "@every 30s", nil); err != nil {
		t.Fatalf("descriptor pattern rejected: %v", err)
	}
}

func TestSchedule_InvalidCronRejectedLocally(t *testing.T) {
	c, mem := newStartedClient(t)

	err := c.Schedule(context.Background(), "daily-report", "not-a-cron", nil)
	if err == nil {
		t.Fatal("expected an error for an invalid cron pattern")
	}
	if !strings.Contains(err.Error(), "invalid cron schedule") {
		t.Errorf("error should name the bad schedule, got %v", err)
	}
	if len(mem.Requests()) != 0 {
		t.Errorf("invalid pattern must not reach the server, got %d requests", len(mem.Requests()))
	}
}

func TestSchedule_ServerRejectionSurfacesVerbatim(t *testing.T) {
	c, mem := newStartedClient(t)
	mem.Script(wire.MethodSchedule, func(json.RawMessage) (any, error) {
		return wire.ScheduleAck{Status: wire.StatusError, Error: "schedule limit reached"}, nil
	})

	err := c.Schedule(context.Background(), "daily-report", "0 6 * * *", nil)
	if err == nil || err.Error() != "schedule limit reached" {
		t.Fatalf("expected server message verbatim, got %v", err)
	}
}

func TestStepResults_EmptyTableForFreshJob(t *testing.T) {
	c, mem := newStartedClient(t)
	mem.Script(wire.MethodStepResults, func(json.RawMessage) (any, error) {
		return wire.StepResultsAck{Status: wire.StatusSuccess}, nil
	})

	table, err := c.StepResults(context.Background(), "job_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != 0 {
		t.Errorf("fresh job should have no step results, got %v", table)
	}
}

func TestStoreStepResult_ServerRejection(t *testing.T) {
	c, mem := newStartedClient(t)
	mem.Script(wire.MethodStoreStep, func(json.RawMessage) (any, error) {
		return wire.StoreStepAck{Status: wire.StatusError, Error: "storage unavailable"}, nil
	})

	err := c.StoreStepResult(context.Background(), "job_1", "extract", json.RawMessage(`{}`))
	if err == nil || err.Error() != "storage unavailable" {
		t.Fatalf("expected server message verbatim, got %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
