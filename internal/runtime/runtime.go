// Package runtime defines the contract qrun expects from the remote quantum
// execution service, plus an HTTP implementation of it.
//
// The service is not contractually stable: job status comes back as a plain
// string, an enum-like value or a small object depending on the deployment,
// and result envelopes change shape between versions. The interfaces here
// therefore keep results opaque (Result is any) and expose the shapes a
// result might support as optional capability interfaces. Consumers probe
// for them with type assertions.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/livinlefevreloca/qrun/internal/backend"
	"github.com/livinlefevreloca/qrun/internal/circuit"
	"github.com/livinlefevreloca/qrun/internal/quasi"
)

// ErrUnsupported is returned when a service does not implement an optional
// operation or a result does not carry the requested shape.
var ErrUnsupported = errors.New("runtime: operation not supported")

// SubmitOptions holds per-job execution settings.
type SubmitOptions struct {
	Shots             int
	OptimizationLevel int
	// Seed is passed to the transpiler when set.
	Seed *int64
}

// Service submits circuits for execution.
type Service interface {
	// Submit hands the circuit to the service and returns as soon as a job
	// identifier exists. It does not wait for execution.
	Submit(ctx context.Context, target backend.Descriptor, c circuit.Circuit, opts SubmitOptions) (Job, error)
}

// Job is a handle on one submitted execution.
type Job interface {
	ID() string
	// Status returns the service's raw status value. Use NormalizeStatus to
	// interpret it.
	Status(ctx context.Context) (any, error)
	Result(ctx context.Context) (Result, error)
}

// Waiter is implemented by jobs that can block until a terminal state.
type Waiter interface {
	WaitForFinalState(ctx context.Context, timeout time.Duration) error
}

// Result is a raw, shape-ambiguous execution result.
type Result any

// DistributionLister is implemented by results that expose their
// quasi-distributions directly.
type DistributionLister interface {
	QuasiDists() ([]quasi.Distribution, error)
}

// DictViewer is implemented by results that can render themselves as a
// generic JSON-like document.
type DictViewer interface {
	ToDict() (map[string]any, error)
}

// RawPayloader is implemented by results that keep the undecoded payload
// the service returned. The value is a JSON-like tree (maps, slices,
// strings, numbers) or nil.
type RawPayloader interface {
	RawPayload() any
}
