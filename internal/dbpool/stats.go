package dbpool

import "time"

// Stats is a point-in-time view of the pool.
type Stats struct {
	State                State
	Total                int32
	Idle                 int32
	Acquired             int32
	Constructing         int32
	Max                  int32
	AcquireCount         int64
	EmptyAcquireCount    int64
	CanceledAcquireCount int64
	AcquireDuration      time.Duration
}

func (p *Pool) Stat() Stats {
	p.mu.Lock()
	state, res := p.state, p.res
	p.mu.Unlock()

	s := Stats{State: state, Max: p.cfg.MaxPoolSize}
	if res == nil || state == StateClosed {
		return s
	}

	st := res.Stat()
	s.Total = st.TotalResources()
	s.Idle = st.IdleResources()
	s.Acquired = st.AcquiredResources()
	s.Constructing = st.ConstructingResources()
	s.AcquireCount = st.AcquireCount()
	s.EmptyAcquireCount = st.EmptyAcquireCount()
	s.CanceledAcquireCount = st.CanceledAcquireCount()
	s.AcquireDuration = st.AcquireDuration()
	return s
}
