package manager

import (
	"runtime"
	"runtime/debug"
)

// Unload releases the native resource, clears the handle, and forces a
// memory-reclamation pass. Always safe to call, including when nothing is
// loaded.
func (m *Manager) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unloadLocked()
}

func (m *Manager) unloadLocked() {
	if m.handle == nil {
		return
	}
	id := m.handle.Descriptor.ID
	if err := m.handle.native.Close(); err != nil {
		m.log.Error().Str("model", id).Err(err).Msg("error releasing native handle")
	}
	m.handle = nil
	unloadsTotal.Inc()

	runtime.GC()
	debug.FreeOSMemory()
	m.log.Info().Str("model", id).Msg("model unloaded, memory reclaimed")
}
