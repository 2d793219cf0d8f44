package model

import "time"

// Clock is the time source of components with expiring state.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (cf ClockFunc) Now() time.Time {
	return cf()
}

var SystemClock Clock = ClockFunc(time.Now)
