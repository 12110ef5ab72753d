package observability

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of the gateway counters, served on
// /stats and broadcast by the telemetry worker.
type Stats struct {
	GrantsIssued     uint64  `json:"grants_issued"`
	GrantsDenied     uint64  `json:"grants_denied"`
	EventsDispatched uint64  `json:"events_dispatched"`
	FramesDelivered  uint64  `json:"frames_delivered"`
	SlowClientDrops  uint64  `json:"slow_client_drops"`
	SocketsConnected uint64  `json:"sockets_connected"`
	ActiveSockets    int64   `json:"active_sockets"`
	ProcessRSSMb     uint64  `json:"process_rss_mb"`
	ProcessCPU       float64 `json:"process_cpu_percent"`
	AllocMemMb       uint64  `json:"alloc_mem_mb"`
	NumGC            uint32  `json:"num_gc"`
	At               string  `json:"at"`
}

// Monitoring aggregates gateway telemetry. Counters are atomic so the
// hot paths (grant, dispatch, emit) never contend on a lock.
type Monitoring struct {
	grantsIssued     atomic.Uint64
	grantsDenied     atomic.Uint64
	eventsDispatched atomic.Uint64
	framesDelivered  atomic.Uint64
	slowClientDrops  atomic.Uint64
	socketsConnected atomic.Uint64
	activeSockets    atomic.Int64

	mu      sync.RWMutex
	process processStats
}

type processStats struct {
	rssMb uint64
	cpu   float64
}

func NewMonitoring() *Monitoring {
	return &Monitoring{}
}

func (m *Monitoring) IncrGrantsIssued()     { m.grantsIssued.Add(1) }
func (m *Monitoring) IncrGrantsDenied()     { m.grantsDenied.Add(1) }
func (m *Monitoring) IncrEventsDispatched() { m.eventsDispatched.Add(1) }
func (m *Monitoring) IncrFramesDelivered()  { m.framesDelivered.Add(1) }
func (m *Monitoring) IncrSlowClientDrops()  { m.slowClientDrops.Add(1) }

func (m *Monitoring) SocketConnected() {
	m.socketsConnected.Add(1)
	m.activeSockets.Add(1)
}

func (m *Monitoring) SocketDisconnected() {
	m.activeSockets.Add(-1)
}

// SetProcessStats merges the self-process metrics collected by the
// telemetry worker.
func (m *Monitoring) SetProcessStats(rssMb uint64, cpu float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.process = processStats{rssMb: rssMb, cpu: cpu}
}

func (m *Monitoring) Snapshot() Stats {
	m.mu.RLock()
	process := m.process
	m.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Stats{
		GrantsIssued:     m.grantsIssued.Load(),
		GrantsDenied:     m.grantsDenied.Load(),
		EventsDispatched: m.eventsDispatched.Load(),
		FramesDelivered:  m.framesDelivered.Load(),
		SlowClientDrops:  m.slowClientDrops.Load(),
		SocketsConnected: m.socketsConnected.Load(),
		ActiveSockets:    m.activeSockets.Load(),
		ProcessRSSMb:     process.rssMb,
		ProcessCPU:       process.cpu,
		AllocMemMb:       mem.Alloc / 1024 / 1024,
		NumGC:            mem.NumGC,
		At:               time.Now().UTC().Format(time.RFC3339),
	}
}
