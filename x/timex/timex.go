package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// TickNs is the length of one tick of a resolutionHz clock, in nanoseconds.
// resolutionHz==0 is coerced to 1 to avoid division by zero.
func TickNs(resolutionHz uint32) uint64 {
	if resolutionHz == 0 {
		resolutionHz = 1
	}
	return 1_000_000_000 / uint64(resolutionHz)
}

// Ticks converts ns to the nearest whole number of ticks at resolutionHz.
func Ticks(ns uint32, resolutionHz uint32) uint32 {
	tick := TickNs(resolutionHz)
	return uint32((uint64(ns) + tick/2) / tick)
}

// Ns converts a tick count back to nanoseconds.
func Ns(ticks uint32, resolutionHz uint32) uint32 {
	return uint32(uint64(ticks) * TickNs(resolutionHz))
}

// Ms returns d as whole milliseconds, saturating at the uint32 range.
func Ms(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}
