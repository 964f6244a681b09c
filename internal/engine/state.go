package engine

import "sync"

// State holds the two run flags shared by the worker loops. "processing" is
// toggled by the command surface, "time gate" by the time-of-day gate; the
// poller runs only while both are true. Setting a flag back to true never
// resumes a stopped loop by itself; resumption is always an explicit
// Resume call on the supervisor.
type State struct {
	mu         sync.Mutex
	processing bool
	timeGate   bool
}

// NewState returns a State with both flags enabled.
func NewState() *State {
	return &State{processing: true, timeGate: true}
}

// Processing reports the command-surface flag.
func (s *State) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// TimeGate reports the time-gate flag.
func (s *State) TimeGate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeGate
}

// Runnable reports whether both flags allow the poller to run.
func (s *State) Runnable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing && s.timeGate
}

// SetProcessing sets the command-surface flag.
func (s *State) SetProcessing(v bool) {
	s.mu.Lock()
	s.processing = v
	s.mu.Unlock()
}

// SetTimeGate sets the time-gate flag.
func (s *State) SetTimeGate(v bool) {
	s.mu.Lock()
	s.timeGate = v
	s.mu.Unlock()
}
