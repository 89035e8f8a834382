package awareness

import "errors"

var (
	// ErrDuplicateRegistration is returned by Register for an id that is
	// already known to the engine.
	ErrDuplicateRegistration = errors.New("duplicate registration")
	// ErrUnknownEntity is returned by Unregister and the notify calls for an
	// id that was never registered, or was already unregistered.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrInvalidPosition tags log entries for non-finite coordinates. It is
	// never returned to callers: coordinates are clamped instead.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrShutdown is returned for any mutation after Shutdown began, and by
	// Tick once the engine has stopped.
	ErrShutdown = errors.New("awareness engine shut down")
	// ErrBackPressure tags log entries for refresh batches that stalled on a
	// full event queue. It is never returned to callers.
	ErrBackPressure = errors.New("event queue above high water")
)
