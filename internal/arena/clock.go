package arena

import "time"

// Clock supplies the current time in Unix epoch milliseconds. Every
// transition takes its timestamp from here, so swapping the clock makes
// a whole race replayable.
type Clock interface {
	NowMs() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) NowMs() int64 {
	return time.Now().UnixMilli()
}
