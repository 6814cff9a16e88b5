package quant

import (
	"sync"
	"testing"
)

func TestFromMillisRoundTrip(t *testing.T) {
	tests := []int64{0, 1, 1700000000000, -5}
	for _, ms := range tests {
		if got := FromMillis(ms).Millis(); got != ms {
			t.Errorf("FromMillis(%d).Millis() = %d", ms, got)
		}
	}
}

func TestParseTimeStamp(t *testing.T) {
	ts, err := ParseTimeStamp("1700000000000")
	if err != nil {
		t.Fatalf("ParseTimeStamp failed: %v", err)
	}
	if ts != TimeStamp(1700000000000000) {
		t.Errorf("ts = %d, want micros", ts)
	}

	if _, err := ParseTimeStamp("not-a-number"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestNextSeq_Concurrent(t *testing.T) {
	var seq uint64
	var wg sync.WaitGroup

	const workers = 8
	const perWorker = 1000
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				NextSeq(&seq)
			}
		}()
	}
	wg.Wait()

	if seq != workers*perWorker {
		t.Errorf("seq = %d, want %d (no lost increments)", seq, workers*perWorker)
	}
}

func FuzzParseTimeStamp(f *testing.F) {
	f.Add("1700000000000")
	f.Add("0")
	f.Add("-1")
	f.Add("abc")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		// Must never panic; errors are the expected outcome for junk input.
		ts, err := ParseTimeStamp(s)
		if err != nil && ts != 0 {
			t.Errorf("ParseTimeStamp(%q) returned %d alongside an error", s, ts)
		}
	})
}
