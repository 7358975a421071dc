package recording

import "time"

// Clock abstracts wall time and timer scheduling so duration budgets can be
// tested against virtual time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. Reports whether it was stopped
	// before firing.
	Stop() bool
}

// systemClock is the production Clock backed by package time.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
