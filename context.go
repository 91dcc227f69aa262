package joblet

import "context"

// Context is the execution context passed through handler invocations.
// It is a plain alias today; a richer joblet-specific context (carrying
// per-job trace/scope helpers) is one candidate future extension.
type Context = context.Context
