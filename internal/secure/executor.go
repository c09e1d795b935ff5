// Package secure runs mutations whose failure modes matter: each execution
// validates its input up front, retries only on transient conflicts within a
// hard attempt bound, verifies the authority's success marker before
// believing it, and keeps exactly one notification lifecycle per execution.
package secure

import (
	"context"
	"log"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/imedia765/memberhub/internal/notify"
)

// MaxAttempts is the total attempt bound per execution, first try included.
const MaxAttempts = 3

// Payload is a mutation input that can vet itself before any attempt.
type Payload interface {
	Validate() error
}

// Outcome is the terminal state of one execution.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRejected  Outcome = "rejected"
	OutcomeExhausted Outcome = "exhausted-retries"
)

// Result reports how an execution ended. Attempts counts authority calls
// actually made; Reason is set on every non-success.
type Result struct {
	Outcome  Outcome
	Attempts int
	Reason   string
	Response any
}

// Operation describes one kind of protected mutation. Mutate performs a
// single attempt and classifies its errors with the package sentinels;
// ResponseSchema, when set, is the success marker a nil-error response must
// satisfy before the execution counts as succeeded.
type Operation struct {
	Name           string
	LoadingMessage string
	SuccessMessage string
	FailureMessage string

	Mutate         func(ctx context.Context, principalID string, payload Payload) (any, error)
	ResponseSchema *jsonschema.Schema
	OnSuccess      func(ctx context.Context, principalID string, response any)
}

// Executor runs an Operation with the retry, validation, and notification
// discipline applied. One executor serves all principals; executions for
// the same principal are serialized by rejection, not queueing.
type Executor struct {
	op       Operation
	notifier notify.Notifier

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewExecutor builds an executor for the operation.
func NewExecutor(op Operation, notifier notify.Notifier) *Executor {
	return &Executor{op: op, notifier: notifier, inflight: make(map[string]struct{})}
}

// Execute runs the mutation for the principal and returns the terminal
// result. Invalid payloads and duplicate in-flight executions are rejected
// before the authority is contacted at all.
func (e *Executor) Execute(ctx context.Context, principalID string, payload Payload) Result {
	if err := payload.Validate(); err != nil {
		e.notifier.Error(e.op.FailureMessage + ": " + err.Error())
		return Result{Outcome: OutcomeRejected, Reason: ReasonInvalidInput}
	}

	if !e.begin(principalID) {
		e.notifier.Error(e.op.FailureMessage + ": already in progress")
		return Result{Outcome: OutcomeRejected, Reason: ReasonAlreadyInFlight}
	}
	defer e.end(principalID)

	dismiss := e.notifier.Loading(e.op.LoadingMessage)

	attempts := 0
	for attempts < MaxAttempts {
		if err := ctx.Err(); err != nil {
			dismiss()
			e.notifier.Error(e.op.FailureMessage)
			return Result{Outcome: OutcomeRejected, Attempts: attempts, Reason: ReasonAuthorityFailure}
		}

		attempts++
		response, err := e.op.Mutate(ctx, principalID, payload)
		if err != nil {
			if Classify(err) == ReasonTransientConflict {
				log.Printf("%s: attempt %d/%d hit transient conflict: %v", e.op.Name, attempts, MaxAttempts, err)
				continue
			}
			dismiss()
			e.notifier.Error(e.op.FailureMessage)
			return Result{Outcome: OutcomeRejected, Attempts: attempts, Reason: Classify(err)}
		}

		if err := e.validateResponse(response); err != nil {
			// The authority said yes but the response carries no valid
			// success marker. Trusting it would report a success nobody
			// can verify happened.
			log.Printf("%s: success response failed validation: %v", e.op.Name, err)
			dismiss()
			e.notifier.Error(e.op.FailureMessage)
			return Result{Outcome: OutcomeRejected, Attempts: attempts, Reason: ReasonMalformedResponse, Response: response}
		}

		dismiss()
		e.notifier.Success(e.op.SuccessMessage)
		if e.op.OnSuccess != nil {
			e.op.OnSuccess(ctx, principalID, response)
		}
		return Result{Outcome: OutcomeSucceeded, Attempts: attempts, Response: response}
	}

	dismiss()
	e.notifier.Error(e.op.FailureMessage)
	return Result{Outcome: OutcomeExhausted, Attempts: attempts, Reason: ReasonTransientConflict}
}

func (e *Executor) validateResponse(response any) error {
	if e.op.ResponseSchema == nil {
		return nil
	}
	return e.op.ResponseSchema.Validate(response)
}

func (e *Executor) begin(principalID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inflight[principalID]; ok {
		return false
	}
	e.inflight[principalID] = struct{}{}
	return true
}

func (e *Executor) end(principalID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, principalID)
}
