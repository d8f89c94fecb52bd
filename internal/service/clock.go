package service

import "time"

// Clock abstrae la hora actual para poder fijarla en tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapta una función a Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock devuelve un reloj basado en time.Now en UTC.
func SystemClock() Clock { return systemClock{} }
