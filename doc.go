// Package planllama is a Go client for the PlanLlama job queue. It
// offers background job dispatch, distributed workers, workflow
// orchestration, and lifecycle hooks over a single server connection.
//
// The server owns all queue state. This client dispatches work,
// executes work the server pushes to it, and drives workflow runs by
// dispatching one job per step; nothing is persisted locally.
//
// # Quick Start
//
//	c, err := planllama.Dial(ctx, "wss://queue.example.com/ws",
//	    planllama.WithToken(token),
//	)
//	if err != nil {
//	    return err
//	}
//
//	c.Register("send-email", func(ctx context.Context, data json.RawMessage) (any, error) {
//	    var p EmailPayload
//	    if err := json.Unmarshal(data, &p); err != nil {
//	        return nil, err
//	    }
//	    return nil, smtp.Send(p.To, p.Subject)
//	})
//
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//	defer c.Stop(context.Background())
//
//	jobID, err := c.Dispatch(ctx, "send-email", EmailPayload{To: "a@b.c"})
//
// # Architecture
//
// One WebSocket channel carries everything: client requests (dispatch,
// schedule, step-result reads and writes), client events (worker
// registration, progress reports), server-pushed work items, and
// per-job outcome notifications. DispatchAndWait correlates those
// notifications back to the blocked caller; workflows are built
// entirely out of DispatchAndWait calls, one per step, so steps run
// wherever capacity exists.
//
// Client-generated identifiers use TypeID: type-prefixed, K-sortable,
// UUIDv7-based identifiers.
package planllama
