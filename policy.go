package qsync

// Policy gives the synchronizer state its meaning. Implementations must be
// short, non-blocking and thread-safe, touching the state only through
// State, SetState and CompareAndSwapState of the owning Synchronizer.
//
// The core never interprets the state itself. A policy usually supports
// one mode and embeds UnsupportedPolicy for the other.
type Policy interface {
	// TryAcquire attempts an exclusive acquire of arg.
	TryAcquire(arg int64) bool
	// TryRelease attempts an exclusive release of arg and reports whether
	// the state is now fully released, so that a waiter may proceed.
	TryRelease(arg int64) bool
	// TryAcquireShared attempts a shared acquire. Negative means failure,
	// zero means success with nothing left for other shared waiters, and a
	// positive value means success that subsequent waiters may share.
	TryAcquireShared(arg int64) int64
	// TryReleaseShared attempts a shared release and reports whether a
	// waiting acquire (shared or exclusive) may now succeed.
	TryReleaseShared(arg int64) bool
	// IsHeldExclusively reports whether the state is held exclusively.
	// It only has to be meaningful for policies that use a Condition.
	IsHeldExclusively() bool
}

// UnsupportedPolicy implements every Policy method by panicking with
// ErrUnsupported. Embed it and override the methods a policy supports.
type UnsupportedPolicy struct{}

func (UnsupportedPolicy) TryAcquire(int64) bool        { panic(ErrUnsupported) }
func (UnsupportedPolicy) TryRelease(int64) bool        { panic(ErrUnsupported) }
func (UnsupportedPolicy) TryAcquireShared(int64) int64 { panic(ErrUnsupported) }
func (UnsupportedPolicy) TryReleaseShared(int64) bool  { panic(ErrUnsupported) }
func (UnsupportedPolicy) IsHeldExclusively() bool      { panic(ErrUnsupported) }
