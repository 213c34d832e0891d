package prof

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Entry represents a single timing measurement.
type Entry struct {
	Label string
	Dur   time.Duration
}

// Recorder collects timing entries from concurrent tiles.
type Recorder struct {
	mu     sync.Mutex
	record []Entry
}

// Track logs the duration since start with the given name. A nil recorder
// drops the entry.
func (r *Recorder) Track(start time.Time, name string) {
	if r == nil {
		return
	}
	elapsed := time.Since(start)
	r.mu.Lock()
	r.record = append(r.record, Entry{Label: name, Dur: elapsed})
	r.mu.Unlock()
}

// SnapshotAndReset returns the collected timing entries and clears them.
func (r *Recorder) SnapshotAndReset() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.record))
	copy(out, r.record)
	r.record = nil
	return out
}

var std Recorder

// Default returns the process-wide recorder used by Track.
func Default() *Recorder { return &std }

// Track logs into the process-wide recorder.
func Track(start time.Time, name string) { std.Track(start, name) }

// SnapshotAndReset drains the process-wide recorder.
func SnapshotAndReset() []Entry { return std.SnapshotAndReset() }

// Summary aggregates the entries sharing a label.
type Summary struct {
	Label string
	Count int
	Total time.Duration
	Max   time.Duration
}

func (s Summary) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Summarize groups entries by label, sorted by label.
func Summarize(entries []Entry) []Summary {
	idx := make(map[string]int)
	var out []Summary
	for _, e := range entries {
		i, ok := idx[e.Label]
		if !ok {
			i = len(out)
			idx[e.Label] = i
			out = append(out, Summary{Label: e.Label})
		}
		s := &out[i]
		s.Count++
		s.Total += e.Dur
		if e.Dur > s.Max {
			s.Max = e.Dur
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Label < out[b].Label })
	return out
}

// NTTOps is the conventional operation count 5.5*n*log2(n) of a length-n NTT.
func NTTOps(n int) float64 {
	return 5.5 * float64(n) * math.Log2(float64(n))
}

// GOPS converts the time of one length-n transform into giga-operations per second.
func GOPS(n int, per time.Duration) float64 {
	if per <= 0 {
		return 0
	}
	return NTTOps(n) / float64(per.Nanoseconds())
}
