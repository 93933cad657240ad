// Package history keeps the bounded per-device-per-sensor rolling windows
// that feed edge analytics.
//
// Window policy: a fixed number of samples per sensor (default 288, which
// is 24 hours at the default 5-minute sampling interval). Values are kept
// in arrival order; out-of-order deliveries are not reordered.
package history

import "sync"

// Store holds rolling windows keyed by (device, sensor).
//
// Mutation for a given device is expected to arrive through the router's
// per-device serialization; the internal lock only guards cross-device
// access from reporting and compute paths.
type Store struct {
	mu      sync.RWMutex
	windows map[string]map[string][]float64
	size    int
}

// NewStore creates a store with the given window size in samples.
func NewStore(size int) *Store {
	return &Store{
		windows: make(map[string]map[string][]float64),
		size:    size,
	}
}

// Append adds a value to the (device, sensor) window, evicting the oldest
// entry on overflow.
func (s *Store) Append(deviceID, sensor string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sensors, ok := s.windows[deviceID]
	if !ok {
		sensors = make(map[string][]float64)
		s.windows[deviceID] = sensors
	}

	window := append(sensors[sensor], value)
	if len(window) > s.size {
		window = window[len(window)-s.size:]
	}
	sensors[sensor] = window
}

// Window returns a copy of the (device, sensor) window, oldest first.
// A device or sensor with no history yields an empty slice.
func (s *Store) Window(deviceID, sensor string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sensors, ok := s.windows[deviceID]
	if !ok {
		return nil
	}

	window := sensors[sensor]
	out := make([]float64, len(window))
	copy(out, window)
	return out
}

// Len returns the current number of samples in the (device, sensor) window.
func (s *Store) Len(deviceID, sensor string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.windows[deviceID][sensor])
}
