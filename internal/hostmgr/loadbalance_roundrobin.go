package hostmgr

import "sync/atomic"

// RoundRobin is the name of the round-robin load-balance strategy.
const RoundRobin string = "RoundRobin"

func init() {
	RegisterBalanceBuilder(RoundRobin, func() LoadBalance { return &roundRobinLB{} })
}

type roundRobinLB struct {
	hosts    []*Host
	accepted uintptr
}

func (r *roundRobinLB) Name() string { return RoundRobin }

func (r *roundRobinLB) Register(h *Host) {
	r.hosts = append(r.hosts, h)
}

func (r *roundRobinLB) Pick() *Host {
	idx := int(atomic.AddUintptr(&r.accepted, 1)) % len(r.hosts)
	return r.hosts[idx]
}

func (r *roundRobinLB) Len() int { return len(r.hosts) }

func (r *roundRobinLB) Iterate(f func(int, *Host) bool) {
	for i, h := range r.hosts {
		if !f(i, h) {
			break
		}
	}
}
