package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Since reports the time elapsed since t according to NowFunc.
func Since(t time.Time) time.Duration { return NowFunc().Sub(t) }

// Freeze pins NowFunc to t and returns a restore function, e.g.
//
//	defer clock.Freeze(ts)()
func Freeze(t time.Time) (restore func()) {
	prev := NowFunc
	NowFunc = func() time.Time { return t }
	return func() { NowFunc = prev }
}
