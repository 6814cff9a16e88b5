package quant

import (
	"strconv"
	"sync/atomic"
	"time"
)

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

// Now returns the current wall clock as a TimeStamp.
func Now() TimeStamp {
	return TimeStamp(time.Now().UnixMicro())
}

// FromMillis converts Unix Milliseconds (the common exchange wire unit) to TimeStamp.
func FromMillis(ms int64) TimeStamp {
	return TimeStamp(ms * 1000)
}

// Millis converts a TimeStamp back to Unix Milliseconds.
func (t TimeStamp) Millis() int64 {
	return int64(t) / 1000
}

// ParseTimeStamp converts a millisecond string to a TimeStamp (micros).
func ParseTimeStamp(s string) (TimeStamp, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return FromMillis(ms), nil
}

// NextSeq generates the next sequence number atomically.
func NextSeq(ptr *uint64) uint64 {
	return atomic.AddUint64(ptr, 1)
}
