package feed

import "sync"

// pump decouples event production from consumption: pushes never block
// the writer, and the per-subscription order is preserved. Closing a
// pump drops anything not yet consumed.
type pump struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pumpItem
	closed bool
	done   chan struct{}
	out    chan Snapshot
}

// pumpItem is either a snapshot to deliver or, when synced is set, a
// marker to close once every earlier item has been handed over.
type pumpItem struct {
	snap   Snapshot
	synced chan struct{}
}

func newPump() *pump {
	p := &pump{
		out:  make(chan Snapshot),
		done: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

func (p *pump) push(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, pumpItem{snap: s})
	p.cond.Signal()
}

// mark queues ch behind everything pushed so far. It closes once the
// consumer has received all of those earlier snapshots, never before.
func (p *pump) mark(ch chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, pumpItem{synced: ch})
	p.cond.Signal()
}

func (p *pump) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
	p.cond.Signal()
}

func (p *pump) run() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			close(p.out)
			return
		}
		next := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if next.synced != nil {
			close(next.synced)
			continue
		}
		select {
		case p.out <- next.snap:
		case <-p.done:
			close(p.out)
			return
		}
	}
}
