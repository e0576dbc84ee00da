// Package series holds the bounded rolling history of every decoded EEG
// signal. A single writer (the ingest consumer) pushes decoded samples;
// any number of readers (HTTP API, chart renderers, exporters) take
// snapshots. Each series evicts its oldest value once full.
package series

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

// Names of the non-band series. Band series are named after
// thinkgear.BandNames.
const (
	Raw        = "raw"
	Attention  = "attention"
	Meditation = "meditation"
)

// Default capacities.
const (
	DefaultCapacity    = 1000
	DefaultRawCapacity = 32767
)

var ErrUnknownSeries = errors.New("unknown series")

// Store is a set of named ring buffers guarded by a single RWMutex, so a
// sample touching several series becomes visible to readers all at once.
type Store struct {
	mu        sync.RWMutex
	series    map[string]*Ring[int64]
	names     []string
	evictions uint64
}

// NewStore creates the raw, band, attention and meditation series. The raw
// series holds rawCapacity values, every other series capacity values;
// non-positive arguments select the defaults.
func NewStore(capacity, rawCapacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if rawCapacity <= 0 {
		rawCapacity = DefaultRawCapacity
	}

	s := &Store{series: make(map[string]*Ring[int64])}
	s.add(Raw, rawCapacity)
	for _, name := range thinkgear.BandNames() {
		s.add(name, capacity)
	}
	s.add(Attention, capacity)
	s.add(Meditation, capacity)
	return s
}

func (s *Store) add(name string, capacity int) {
	s.series[name] = NewRing[int64](capacity)
	s.names = append(s.names, name)
}

// Names returns the series names in a stable order: raw, the eight bands in
// wire order, attention, meditation.
func (s *Store) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Push appends v to the named series.
func (s *Store) Push(name string, v int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.series[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
	s.push(r, v)
	return nil
}

func (s *Store) push(r *Ring[int64], v int64) {
	if r.Push(v) {
		s.evictions++
	}
}

// PushSample appends every value carried by a decoded sample.
func (s *Store) PushSample(sm thinkgear.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch sm.Kind {
	case thinkgear.KindSmallRaw:
		s.push(s.series[Raw], int64(sm.Raw))
	case thinkgear.KindLargeBands:
		for i, name := range s.names[1 : 1+thinkgear.NumBands] {
			s.push(s.series[name], int64(sm.Bands[i]))
		}
		s.push(s.series[Attention], int64(sm.Attention))
		s.push(s.series[Meditation], int64(sm.Meditation))
	}
}

// Snapshot copies the named series, oldest first. Later pushes do not
// affect the returned slice.
func (s *Store) Snapshot(name string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.series[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
	return r.Snapshot(), nil
}

// SnapshotAll copies the given series, or every series when none are
// named, under a single read lock so the copies are mutually consistent.
// Unknown names are skipped.
func (s *Store) SnapshotAll(names ...string) map[string][]int64 {
	if len(names) == 0 {
		names = s.names
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]int64, len(names))
	for _, name := range names {
		if r, ok := s.series[name]; ok {
			out[name] = r.Snapshot()
		}
	}
	return out
}

// Tail copies at most the newest n values of the named series.
func (s *Store) Tail(name string, n int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.series[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
	return r.Tail(n), nil
}

// Len reports how many values the named series holds; 0 for unknown names.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[name]; ok {
		return r.Len()
	}
	return 0
}

// Capacity reports the bound of the named series; 0 for unknown names.
func (s *Store) Capacity(name string) int {
	if r, ok := s.series[name]; ok {
		return r.Cap()
	}
	return 0
}

// At returns the i-th value of the named series, oldest first.
func (s *Store) At(name string, i int) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[name]; ok {
		return r.At(i)
	}
	return 0, false
}

// Latest returns the newest value of the named series.
func (s *Store) Latest(name string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[name]; ok {
		return r.Last()
	}
	return 0, false
}

// MaxLen reports the longest length among the given series, or among all
// series when none are named.
func (s *Store) MaxLen(names ...string) int {
	if len(names) == 0 {
		names = s.names
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	longest := 0
	for _, name := range names {
		if r, ok := s.series[name]; ok && r.Len() > longest {
			longest = r.Len()
		}
	}
	return longest
}

// Evictions reports how many values have been dropped to make room.
func (s *Store) Evictions() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evictions
}

// Reset empties every series.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.series {
		r.Reset()
	}
	s.evictions = 0
}
