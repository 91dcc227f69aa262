package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joblet/joblet/job"
)

// TypedHandlerFunc is a JSON-typed job handler: payload is decoded from
// job.Job.Message into T before the handler runs, and a non-nil return
// value is JSON-encoded back into the stored JobResult.
//
// HandleTyped and EnqueueTyped are package-level generic functions, not
// Engine methods, because Go does not allow generic methods on non-generic
// receiver types.
type TypedHandlerFunc[T any] func(ctx context.Context, j *job.Job, payload T, onCancel OnCancel) (any, error)

// HandleTyped registers a JSON-typed handler for jobType. It is a
// convenience layer over Engine.Handle: the wrapped HandlerFunc
// unmarshals j.Message into T before calling fn, and marshals fn's
// result back to bytes when non-nil.
func HandleTyped[T any](e *Engine, jobType string, opts HandlerOptions, fn TypedHandlerFunc[T]) error {
	wrapped := func(ctx context.Context, j *job.Job, onCancel OnCancel) ([]byte, error) {
		var payload T
		if len(j.Message) > 0 {
			if err := json.Unmarshal(j.Message, &payload); err != nil {
				return nil, fmt.Errorf("engine: unmarshal payload for job %q: %w", jobType, err)
			}
		}

		result, err := fn(ctx, j, payload, onCancel)
		if err != nil {
			return nil, err
		}

		if result == nil {
			return nil, nil
		}

		return json.Marshal(result)
	}

	return e.Handle(jobType, opts, wrapped)
}

// EnqueueTyped JSON-marshals payload and pushes it as a new job of
// jobType via Engine.Enqueue.
func EnqueueTyped[T any](ctx context.Context, e *Engine, jobType string, payload T, client string, opts ...job.Option) (*job.Job, bool, error) {
	message, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("engine: marshal payload for job %q: %w", jobType, err)
	}

	return e.Enqueue(ctx, jobType, message, client, opts...)
}
