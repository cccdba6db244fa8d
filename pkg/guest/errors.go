package guest

import "errors"

var (
	// ErrBootTimeout is returned when a Master does not reach
	// waiting_for_requests within its configured boot budget.
	ErrBootTimeout = errors.New("guest: boot timed out before reaching waiting_for_requests")
	// ErrWarmupTimeout is returned when warmup does not re-quiesce the
	// guest within the boot budget (spec §4.4 "Failure").
	ErrWarmupTimeout = errors.New("guest: warmup did not return to waiting_for_requests")
	// ErrNotFrozen is returned by operations that require a frozen
	// Master (forking a Worker, most prominently).
	ErrNotFrozen = errors.New("guest: master is not frozen")
	// ErrPollMethodUnset is returned when a Worker needs to restart its
	// polling syscall but no quiescence hook ever latched one.
	ErrPollMethodUnset = errors.New("guest: poll method was never determined")
	// ErrResetFailed wraps a failed reset_to call (spec §4.8 step 3:
	// logged, the worker thread continues).
	ErrResetFailed = errors.New("guest: reset_to failed")
	// ErrStorageCall wraps a failed storage-guest remote call (spec
	// §4.7).
	ErrStorageCall = errors.New("guest: storage call failed")
)
