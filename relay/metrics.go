package relay

import "expvar"

// Counters published at /debug/vars.
var (
	streamsStarted   = expvar.NewInt("streams_started")
	streamsCompleted = expvar.NewInt("streams_completed")
	streamsFailed    = expvar.NewInt("streams_failed")
)
