// Package workflow defines multi-step workflows as dependency graphs
// and the orchestrator that runs them through the job queue.
//
// A workflow is a set of named steps. Each step receives the results of
// the steps it declares in Needs; the orchestrator repeatedly computes
// the frontier of runnable steps, dispatches each one as a job named
// "<workflow>/<step>", and merges settled results into the run's result
// table. Settled results are persisted on the server as the run
// progresses, so a retried or resumed workflow job skips every step
// that already completed.
//
// # Defining a Workflow
//
//	var ProcessOrder = &workflow.Definition{
//	    Name: "process-order",
//	    Steps: map[string]workflow.Step{
//	        "validate": {Run: validateOrder},
//	        "charge": {
//	            Needs: []string{"validate"},
//	            Run:   chargeCard,
//	        },
//	        "fulfill": {
//	            Needs: []string{"charge"},
//	            Run:   fulfillOrder,
//	        },
//	        "notify": {
//	            Needs: []string{"charge"},
//	            Run:   sendConfirmation,
//	        },
//	    },
//	}
//
// Steps with the same satisfied dependencies run concurrently: here
// "fulfill" and "notify" both run once "charge" settles.
//
// # Step Handlers
//
// A step handler receives the accumulated result table and returns the
// step's own result:
//
//	func chargeCard(ctx context.Context, results workflow.Results) (any, error) {
//	    var order Order
//	    if err := results.Decode("validate", &order); err != nil {
//	        return nil, err
//	    }
//	    return charge(ctx, order.PaymentToken, order.Amount)
//	}
//
// # Validation
//
// The graph is checked before any step is dispatched: a dependency on
// an undeclared step and a dependency cycle are both definition errors.
// Cycles surface as [ErrRecursiveDependency].
package workflow
