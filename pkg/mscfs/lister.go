package mscfs

import (
	"time"

	"github.com/cardcontact/cardfs/pkg/models"
)

// Lister enumerates the applet's object table one entry per call.
// first restarts the enumeration. ok is false once the table is exhausted.
// Implementations keep their own cursor.
type Lister interface {
	ListEntry(first bool) (entry models.Entry, ok bool, err error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(first bool) (models.Entry, bool, error)

// ListEntry calls f(first).
func (f ListerFunc) ListEntry(first bool) (models.Entry, bool, error) {
	return f(first)
}

// Observer receives cache and lookup events, e.g. for metrics.
type Observer interface {
	CachePopulated(entries int, d time.Duration, err error)
	CacheGrown(capacity int)
	Lookup(found, virtual bool)
}

type nopObserver struct{}

func (nopObserver) CachePopulated(int, time.Duration, error) {}
func (nopObserver) CacheGrown(int)                          {}
func (nopObserver) Lookup(bool, bool)                       {}
