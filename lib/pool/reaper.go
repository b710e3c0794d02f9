package pool

import (
	"time"
)

// reapLoop retires expired idle connections every period.
func (p *Pool) reapLoop(period time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.reap()
		}
	}
}

// reap closes idle slots past IdleTimeout or MaxLifetime and asks the
// filler to replace them. Borrowed and validating slots are never touched.
func (p *Pool) reap() {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return
	}

	now := time.Now()
	var expired []*slot
	kept := make([]*slot, 0, len(p.idle))
	for _, s := range p.idle {
		if s.expired(&p.cfg, now) {
			expired = append(expired, s)
			continue
		}
		kept = append(kept, s)
	}
	p.idle = kept
	for _, s := range expired {
		p.closeSlotLocked(s)
	}
	p.requestFillLocked()
	p.mu.Unlock()

	p.closeConns(expired)
	if len(expired) > 0 {
		log.WithField("pool", p.cfg.Name).WithField("closed", len(expired)).Debug("reaper retired idle connections")
	}
}
