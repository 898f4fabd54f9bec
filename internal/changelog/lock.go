package changelog

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLockTimeout is returned when the advisory lock cannot be acquired within
// the configured budget and the holder is not stale.
var ErrLockTimeout = errors.New("changelog: lock acquisition timed out")

// Lock is a directory-based advisory lock. Creating a directory is atomic on
// every filesystem the pipeline runs on, which makes it a portable mutex
// marker between overlapping CI runs sharing a working copy.
type Lock struct {
	// Dir is the lock marker path, conventionally "<changelog>.lock".
	Dir string
	// Poll is the wait between acquisition attempts.
	Poll time.Duration
	// Timeout bounds the total time spent acquiring.
	Timeout time.Duration
	// StaleAfter is the age past which a held lock is considered abandoned
	// (a killed CI job leaves its marker behind) and is forcibly reclaimed.
	StaleAfter time.Duration
}

// DefaultLock returns a Lock for the given changelog path with the bounds the
// pipeline uses: 200ms poll, 10s total, 5min staleness.
func DefaultLock(changelogPath string) *Lock {
	return &Lock{
		Dir:        changelogPath + ".lock",
		Poll:       200 * time.Millisecond,
		Timeout:    10 * time.Second,
		StaleAfter: 5 * time.Minute,
	}
}

// Acquire blocks until the lock is held, a stale holder is reclaimed, or the
// timeout elapses.
func (l *Lock) Acquire() error {
	deadline := time.Now().Add(l.Timeout)
	for {
		err := os.Mkdir(l.Dir, 0o755)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("changelog: create lock %q: %w", l.Dir, err)
		}

		if info, statErr := os.Stat(l.Dir); statErr == nil {
			if time.Since(info.ModTime()) > l.StaleAfter {
				// Holder is long gone; reclaim and retry immediately.
				if rmErr := os.RemoveAll(l.Dir); rmErr != nil {
					return fmt.Errorf("changelog: reclaim stale lock %q: %w", l.Dir, rmErr)
				}
				continue
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %q held for under %s", ErrLockTimeout, l.Dir, l.StaleAfter)
		}
		time.Sleep(l.Poll)
	}
}

// Release removes the lock marker. Safe to call when the lock is not held.
func (l *Lock) Release() error {
	if err := os.RemoveAll(l.Dir); err != nil {
		return fmt.Errorf("changelog: release lock %q: %w", l.Dir, err)
	}
	return nil
}
