package elevshm

import (
	"errors"
	"math"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// golang.org/x/sys/unix does not export the futex() operation codes, so
// they are defined here with their fixed values from linux/futex.h.
const (
	futexWaitOp = 0
	futexWakeOp = 1
)

// The mutex word and condition sequence word are plain futexes, shared
// between processes through the MAP_SHARED mapping. FUTEX_WAIT/FUTEX_WAKE
// (not the _PRIVATE variants) make the kernel match waiters across
// address spaces.

func (r *Region) word(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.data[off]))
}

func futexWait(addr *uint32, val uint32, ts *unix.Timespec) error {
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), uintptr(futexWaitOp),
		uintptr(val), uintptr(unsafe.Pointer(ts)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func futexWake(addr *uint32, count int) {
	unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), uintptr(futexWakeOp),
		uintptr(count), 0, 0, 0)
}

// Lock acquires the record mutex, blocking until it is free. The states
// are 0 (unlocked), 1 (locked) and 2 (locked with waiters).
func (r *Region) Lock() {
	m := r.word(offMutex)
	if atomic.CompareAndSwapUint32(m, 0, 1) {
		return
	}
	for {
		if atomic.LoadUint32(m) == 2 || atomic.CompareAndSwapUint32(m, 1, 2) {
			futexWait(m, 2, nil)
		}
		if atomic.CompareAndSwapUint32(m, 0, 2) {
			return
		}
	}
}

// Unlock releases the record mutex and wakes one blocked locker, if any.
func (r *Region) Unlock() {
	m := r.word(offMutex)
	if atomic.SwapUint32(m, 0) == 2 {
		futexWake(m, 1)
	}
}

// Wait blocks until the record is broadcast. The mutex must be held; it is
// released while waiting and reacquired before returning. Wakeups may be
// spurious, so callers re-examine their predicates.
func (r *Region) Wait() {
	c := r.word(offCondSeq)
	seq := atomic.LoadUint32(c)
	r.Unlock()
	futexWait(c, seq, nil)
	r.Lock()
}

// WaitTimeout is Wait with an upper bound. It reports whether the bound
// expired before a broadcast arrived.
func (r *Region) WaitTimeout(d time.Duration) bool {
	c := r.word(offCondSeq)
	seq := atomic.LoadUint32(c)
	r.Unlock()
	ts := unix.NsecToTimespec(d.Nanoseconds())
	err := futexWait(c, seq, &ts)
	r.Lock()
	return errors.Is(err, unix.ETIMEDOUT)
}

// Broadcast wakes every process waiting on the record. Called after any
// mutation, with the mutex held.
func (r *Region) Broadcast() {
	c := r.word(offCondSeq)
	atomic.AddUint32(c, 1)
	futexWake(c, math.MaxInt32)
}
