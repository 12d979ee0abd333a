package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Since reports wall time elapsed from t using NowFunc, so latency
// measurements stay deterministic under a stubbed clock.
func Since(t time.Time) time.Duration { return NowFunc().Sub(t) }
