package player

import "sync"

// MuteState is the single shared mute flag for every mounted player. Browsers
// only allow unprompted autoplay while muted, so the flag starts true. Every
// change is pushed to all subscribers synchronously before the mutating call
// returns, so no two players ever disagree on mute state.
type MuteState struct {
	mu        sync.Mutex
	muted     bool
	nextID    int
	listeners map[int]func(bool)
}

// NewMuteState returns a MuteState starting muted.
func NewMuteState() *MuteState {
	return &MuteState{muted: true, listeners: make(map[int]func(bool))}
}

// Muted reports the current flag.
func (m *MuteState) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// Subscribe registers a listener and immediately invokes it with the current
// value so a freshly mounted player starts in agreement. The returned function
// removes the listener.
func (m *MuteState) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	muted := m.muted
	m.mu.Unlock()

	fn(muted)

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Toggle flips the flag, publishes to every subscriber, and returns the new value.
func (m *MuteState) Toggle() bool {
	m.mu.Lock()
	m.muted = !m.muted
	muted := m.muted
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(muted)
	}
	return muted
}

// Set forces the flag to the provided value and publishes it.
func (m *MuteState) Set(muted bool) {
	m.mu.Lock()
	if m.muted == muted {
		m.mu.Unlock()
		return
	}
	m.muted = muted
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(muted)
	}
}
