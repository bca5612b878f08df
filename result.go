package shadow

import "github.com/shadow/shadow-sub001/internal/syscond"

// ResultKind distinguishes the three shapes a syscall handler can return
// (§6).
type ResultKind int

// Result kinds.
const (
	// ResultDone: the syscall completed; Value carries the result, or
	// -errno if negative.
	ResultDone ResultKind = iota
	// ResultBlocked: the syscall suspended; Condition carries the
	// continuation.
	ResultBlocked
	// ResultNative: the syscall is not handled by the core and should
	// fall through to the managed process's native execution.
	ResultNative
)

// Result is the return protocol every syscall handler produces.
type Result struct {
	Kind        ResultKind
	Value       int64
	Condition   *syscond.Condition
	Restartable bool
}

// Done constructs a completed result. A negative value is interpreted by
// the caller as -errno.
func Done(value int64) Result {
	return Result{Kind: ResultDone, Value: value}
}

// DoneErr constructs a completed result reporting kind as the error.
func DoneErr(kind Kind) Result {
	return Result{Kind: ResultDone, Value: -int64(kind.Errno())}
}

// Blocked constructs a suspended result carrying the condition the
// scheduler will later resume through.
func Blocked(c *syscond.Condition, restartable bool) Result {
	return Result{Kind: ResultBlocked, Condition: c, Restartable: restartable}
}

// Native constructs a result indicating the syscall isn't core-handled.
func Native() Result {
	return Result{Kind: ResultNative}
}
