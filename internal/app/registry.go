package app

import (
	"sort"
	"sync"
	"time"

	"github.com/rescp17/lanGreeter/pkg/discovery"
)

// PeerStatus is where a discovered instance is in the greeting sequence.
type PeerStatus int

const (
	Discovered PeerStatus = iota
	Self
	Greeting
	Greeted
	Failed
)

func (s PeerStatus) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Self:
		return "self"
	case Greeting:
		return "greeting"
	case Greeted:
		return "greeted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PeerState is a snapshot of one discovered instance.
type PeerState struct {
	Service   discovery.ServiceInfo
	Status    PeerStatus
	LastError error
	UpdatedAt time.Time
}

// Registry tracks the instances currently visible on the network in a
// concurrent-safe manner. Instances are keyed by discovery.ServiceInfo.Key.
type Registry struct {
	mu    sync.Mutex
	peers map[string]*PeerState
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string]*PeerState),
		now:   time.Now,
	}
}

// Upsert records a newly resolved instance. It returns true when the
// instance was not known yet. A known instance keeps its status and only
// gets its addresses refreshed.
func (r *Registry) Upsert(service discovery.ServiceInfo, self bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := service.Key()
	if p, ok := r.peers[key]; ok {
		p.Service = service
		p.UpdatedAt = r.now()
		return false
	}

	status := Discovered
	if self {
		status = Self
	}
	r.peers[key] = &PeerState{Service: service, Status: status, UpdatedAt: r.now()}
	return true
}

// Remove forgets an instance so that it is greeted again if it reappears.
func (r *Registry) Remove(key string) (PeerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[key]
	if !ok {
		return PeerState{}, false
	}
	delete(r.peers, key)
	return *p, true
}

// BeginGreeting moves an instance to Greeting. It refuses self entries and
// instances already being greeted.
func (r *Registry) BeginGreeting(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[key]
	if !ok || p.Status == Self || p.Status == Greeting {
		return false
	}
	p.Status = Greeting
	p.LastError = nil
	p.UpdatedAt = r.now()
	return true
}

// FinishGreeting records the outcome of a greeting attempt.
func (r *Registry) FinishGreeting(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[key]
	if !ok {
		return
	}
	if err != nil {
		p.Status = Failed
		p.LastError = err
	} else {
		p.Status = Greeted
	}
	p.UpdatedAt = r.now()
}

// Get returns the state of one instance.
func (r *Registry) Get(key string) (PeerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[key]
	if !ok {
		return PeerState{}, false
	}
	return *p, true
}

// Snapshot returns all instances sorted by instance name.
func (r *Registry) Snapshot() []PeerState {
	r.mu.Lock()
	snapshot := make([]PeerState, 0, len(r.peers))
	for _, p := range r.peers {
		snapshot = append(snapshot, *p)
	}
	r.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Service.Name < snapshot[j].Service.Name
	})
	return snapshot
}
