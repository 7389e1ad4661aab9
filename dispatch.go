package planllama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/BaudehloBiz/planllama-go/job"
	"github.com/BaudehloBiz/planllama-go/wire"
)

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Dispatch submits a job and returns its server-assigned id. The job
// runs on whichever worker the server picks; Dispatch does not wait
// for it.
func (c *Client) Dispatch(ctx context.Context, name string, data any, opts ...job.Option) (string, error) {
	if !c.isStarted() {
		return "", ErrNotStarted
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal payload for job %q: %w", name, err)
	}
	o := job.Build(opts...)

	return c.dispatch(ctx, name, payload, o)
}

// DispatchAndWait submits a job and blocks until the server reports
// its outcome. A successful job yields its result; a failed job yields
// the failure reason as an error. The wait is bounded only by ctx.
func (c *Client) DispatchAndWait(ctx context.Context, name string, data any, opts ...job.Option) (json.RawMessage, error) {
	if !c.isStarted() {
		return nil, ErrNotStarted
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
	}
	o := job.Build(opts...)
	o.NotifyCompletion = true

	jobID, err := c.dispatch(ctx, name, payload, o)
	if err != nil {
		return nil, err
	}

	// The notification may already have arrived; register consults the
	// correlator's stash before blocking.
	outc := c.correl.register(jobID)
	defer c.correl.drop(jobID)

	select {
	case out := <-outc:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) dispatch(ctx context.Context, name string, payload json.RawMessage, o job.Options) (string, error) {
	req := wire.DispatchRequest{Name: name, Data: payload, Options: &o}

	resp, err := c.ch.Request(ctx, wire.MethodDispatch, req)
	if err != nil {
		return "", err
	}

	var ack wire.DispatchAck
	if err := json.Unmarshal(resp.Data, &ack); err != nil {
		return "", ErrInvalidResponse
	}
	if err := ackError(ack.Status, ack.Error); err != nil {
		return "", err
	}
	if ack.JobID == "" {
		return "", ErrInvalidResponse
	}

	return ack.JobID, nil
}

// Schedule registers a recurring dispatch of the named job under a
// cron pattern. The expression is validated locally before anything is
// sent, so a bad pattern never reaches the server.
func (c *Client) Schedule(ctx context.Context, name, cronPattern string, data any, opts ...job.Option) error {
	if !c.isStarted() {
		return ErrNotStarted
	}
	if _, err := cronParser.Parse(cronPattern); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", cronPattern, err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload for job %q: %w", name, err)
	}
	o := job.Build(opts...)

	req := wire.ScheduleRequest{
		Name:        name,
		CronPattern: cronPattern,
		Data:        payload,
		Options:     &o,
	}

	resp, err := c.ch.Request(ctx, wire.MethodSchedule, req)
	if err != nil {
		return err
	}

	var ack wire.ScheduleAck
	if err := json.Unmarshal(resp.Data, &ack); err != nil {
		return ErrInvalidResponse
	}

	return ackError(ack.Status, ack.Error)
}

// StepResults fetches the stored step-result table for a workflow job.
// A job with no stored results yields an empty table.
func (c *Client) StepResults(ctx context.Context, jobID string) (map[string]json.RawMessage, error) {
	resp, err := c.ch.Request(ctx, wire.MethodStepResults, wire.StepResultsRequest{JobID: jobID})
	if err != nil {
		return nil, err
	}

	var ack wire.StepResultsAck
	if err := json.Unmarshal(resp.Data, &ack); err != nil {
		return nil, ErrInvalidResponse
	}
	if err := ackError(ack.Status, ack.Error); err != nil {
		return nil, err
	}

	return ack.StepResults, nil
}

// StoreStepResult persists one step result keyed by (job id, step
// name) so an interrupted workflow can resume past the step.
func (c *Client) StoreStepResult(ctx context.Context, jobID, stepName string, result json.RawMessage) error {
	req := wire.StoreStepRequest{JobID: jobID, StepName: stepName, Result: result}

	resp, err := c.ch.Request(ctx, wire.MethodStoreStep, req)
	if err != nil {
		return err
	}

	var ack wire.StoreStepAck
	if err := json.Unmarshal(resp.Data, &ack); err != nil {
		return ErrInvalidResponse
	}

	return ackError(ack.Status, ack.Error)
}

// ackError maps an ack's status and error message to a client error.
// Server-reported errors surface verbatim; anything that is neither a
// well-formed success nor a well-formed error is ErrInvalidResponse.
func ackError(status, errMsg string) error {
	switch {
	case status == wire.StatusError && errMsg != "":
		return errors.New(errMsg)
	case status == wire.StatusSuccess:
		return nil
	default:
		return ErrInvalidResponse
	}
}
