package game

import (
	"log"
	"sync"
)

// Outbox decouples in-memory state transitions from persistence. Mutations
// are enqueued as commands and applied by a single worker in order; the
// in-memory state is never rolled back when a write fails. Failures are
// logged and dropped, and the sync state is observable so callers can
// tell whether the stored record is current.
type Outbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	closed  bool

	commands chan outboxCommand
	done     chan struct{}
}

type outboxCommand struct {
	name string
	fn   func() error
}

// NewOutbox starts the write worker. bufferSize bounds how many commands
// may queue before enqueueing blocks.
func NewOutbox(bufferSize int) *Outbox {
	o := &Outbox{
		commands: make(chan outboxCommand, bufferSize),
		done:     make(chan struct{}),
	}
	o.cond = sync.NewCond(&o.mu)
	go o.run()
	return o
}

// Enqueue schedules a write command. name is used for failure logging.
func (o *Outbox) Enqueue(name string, fn func() error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		log.Printf("Outbox closed, dropping write: %s", name)
		return
	}
	o.pending++
	o.mu.Unlock()

	o.commands <- outboxCommand{name: name, fn: fn}
}

// Synced reports whether every enqueued write has been applied
func (o *Outbox) Synced() bool {
	return o.PendingWrites() == 0
}

// PendingWrites returns the number of writes not yet applied
func (o *Outbox) PendingWrites() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending
}

// Flush blocks until the queue has drained
func (o *Outbox) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.pending > 0 {
		o.cond.Wait()
	}
}

// Close drains the queue and stops the worker. Further enqueues are
// dropped with a log line.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	close(o.commands)
	<-o.done
}

func (o *Outbox) run() {
	defer close(o.done)
	for cmd := range o.commands {
		if err := cmd.fn(); err != nil {
			log.Printf("Failed to apply write %s: %v", cmd.name, err)
		}
		o.mu.Lock()
		o.pending--
		if o.pending == 0 {
			o.cond.Broadcast()
		}
		o.mu.Unlock()
	}
}
