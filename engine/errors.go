package engine

import "github.com/pkg/errors"

// Sentinel error codes returned through Closure.ErrorCode / AsyncProcessor's
// done callback. Zero always means success; everything else is a cause a
// caller can branch on without parsing a message.
const (
	// CodeOK marks a successful run or vertex completion.
	CodeOK = 0
	// CodeFailed marks a processor-reported failure: Process returned a
	// non-nil error. A nonzero code passed to ProcessAsync's done becomes
	// the run's code unchanged.
	CodeFailed = 1
	// CodeEssentialFailed marks an essential-level-2 dependency that
	// resolved empty.
	CodeEssentialFailed = 2
	// CodeStalled marks a run whose vertex closures all dropped to zero
	// without every requested target becoming ready: some dependency
	// chain never produced a value.
	CodeStalled = 3
	// CodeMutabilityConflict marks a run-time invariant I2 violation: two
	// established dependencies on the same Data both tried to claim it
	// (mutably or immutably) and the second claim's CAS lost.
	CodeMutabilityConflict = 4
)

// ErrAlreadyAcquired is returned by an EmitHandle's Set/Forward when that
// same handle has already committed. (Context.Emit itself returns a nil
// handle when the slot was already claimed by an earlier Emit call or by
// the automatic empty-flush that runs when a vertex completes.)
var ErrAlreadyAcquired = errors.New("engine: emit already committed")

// ErrUnknownDependency names the error of a processor asking for a
// dependency name its vertex never declared. graph.Vertex does not return
// it: Context.Dependency panics in that case.
var ErrUnknownDependency = errors.New("engine: unknown dependency name")

// ErrUnknownEmit is the Emit-side counterpart to ErrUnknownDependency;
// Context.Emit likewise panics instead of returning it.
var ErrUnknownEmit = errors.New("engine: unknown emit name")
