package manager

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"validd/internal/config"
	"validd/internal/engine"
	"validd/internal/integrity"
	"validd/internal/sysmem"
	"validd/pkg/types"
)

// Manager owns the one loaded model handle and is the single point of mutual
// exclusion for load, unload, and generate against the native resource.
// Concurrent requests serialize on mu; correctness over parallelism, since
// the native runtime is not safe for concurrent invocation.
type Manager struct {
	mu sync.Mutex

	descriptors []types.ModelDescriptor
	affinity    map[string]string
	fallback    []string
	profile     config.SafetyProfile

	engine  engine.Engine
	mem     sysmem.Prober
	checker integrity.Checker
	log     zerolog.Logger

	handle    *Handle
	startTime time.Time
}

// Handle wraps the opaque native model. At most one exists at a time.
type Handle struct {
	Descriptor   types.ModelDescriptor
	native       engine.Handle
	LoadTime     time.Duration
	LoadedAt     time.Time
	RequestCount uint64
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Descriptors []types.ModelDescriptor
	// Affinity maps a field type to a preferred descriptor id.
	Affinity map[string]string
	// Fallback is the descriptor id order to walk when no affinity applies.
	Fallback []string
	Profile  config.SafetyProfile
	Engine   engine.Engine
	Mem      sysmem.Prober
	Logger   zerolog.Logger
}

// NewWithConfig constructs a Manager, applying profile defaults.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		descriptors: cfg.Descriptors,
		affinity:    cfg.Affinity,
		fallback:    cfg.Fallback,
		profile:     cfg.Profile.Defaults(),
		engine:      cfg.Engine,
		mem:         cfg.Mem,
		log:         cfg.Logger.With().Str("component", "manager").Logger(),
		startTime:   time.Now(),
	}
	if m.engine == nil {
		m.engine = engine.NewLlama()
	}
	if m.mem == nil {
		m.mem = sysmem.Meminfo{}
	}
	m.checker = integrity.Checker{MinSizeBytes: m.profile.MinArtifactBytes}
	return m
}

// Descriptors returns a copy of the descriptor list.
func (m *Manager) Descriptors() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, len(m.descriptors))
	copy(out, m.descriptors)
	return out
}

// DescriptorByID finds a descriptor in declaration order.
func (m *Manager) DescriptorByID(id string) (types.ModelDescriptor, bool) {
	for _, d := range m.descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return types.ModelDescriptor{}, false
}

// availableMB returns usable memory after the safety margin.
func (m *Manager) availableMB() int {
	avail := int(m.mem.AvailableBytes() / (1024 * 1024))
	return avail - m.profile.MemoryMarginMB
}

// ModelStatus is a read-only projection of the active handle.
type ModelStatus struct {
	Loaded       bool
	ModelID      string
	LoadTimeMs   float64
	RequestCount uint64
}

// Status reports the active handle without touching the native resource.
func (m *Manager) Status() ModelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return ModelStatus{}
	}
	return ModelStatus{
		Loaded:       true,
		ModelID:      m.handle.Descriptor.ID,
		LoadTimeMs:   float64(m.handle.LoadTime) / float64(time.Millisecond),
		RequestCount: m.handle.RequestCount,
	}
}

// Ready reports whether a model is currently loaded.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Reports builds the per-descriptor availability view for GET /models.
func (m *Manager) Reports() types.ModelsResponse {
	availMB := m.availableMB()
	st := m.Status()
	resp := types.ModelsResponse{AvailableMemoryMB: availMB}
	resp.Models = make([]types.ModelReport, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		_, statErr := os.Stat(d.Path)
		exists := statErr == nil
		resp.Models = append(resp.Models, types.ModelReport{
			ModelDescriptor: d,
			FileExists:      exists,
			CanLoad:         exists && d.MemoryRequirementMB <= availMB && m.checker.Check(d.Path) == nil,
			IsCurrent:       st.Loaded && st.ModelID == d.ID,
		})
	}
	return resp
}
