package chunkreader

import "sync"

// ticketGate serializes a critical section so that goroutines enter it in
// strictly ascending ticket order, regardless of the order in which they
// arrive. It implements the "ordered" phase of the parallel loop: the
// parse phase runs unordered across workers, but every commit phase must
// execute in ascending chunk-index order.
type ticketGate struct {
	mu   sync.Mutex
	cond *sync.Cond
	next int64
}

func newTicketGate() *ticketGate {
	g := &ticketGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// wait blocks until ticket is the next one to run.
func (g *ticketGate) wait(ticket int64) {
	g.mu.Lock()
	for g.next != ticket {
		g.cond.Wait()
	}
}

// release advances the gate past ticket and wakes any waiters. Must be
// called while still holding the lock acquired by wait.
func (g *ticketGate) release() {
	g.next++
	g.cond.Broadcast()
	g.mu.Unlock()
}
