package awaitcall

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Call is an outstanding invocation. It settles exactly once, when the
// matching reply arrives, and never settles if no reply arrives.
type Call struct {
	ID      string
	Name    string
	Args    []interface{}
	Started time.Time

	done   chan struct{}
	result json.RawMessage
	err    error
}

func newCall(id string, name string, args []interface{}) *Call {
	return &Call{
		ID:      id,
		Name:    name,
		Args:    args,
		Started: time.Now(),
		done:    make(chan struct{}),
	}
}

// settle must be called at most once, which PendingTable guarantees by
// removing the call first.
func (c *Call) settle(result json.RawMessage, err error) {
	c.result = result
	c.err = err
	close(c.done)
}

// Done returns a channel that is closed once the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Settled reports whether a reply has been received.
func (c *Call) Settled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Err returns the failure of a settled call, or nil while it's pending or
// if it succeeded.
func (c *Call) Err() error {
	if !c.Settled() {
		return nil
	}
	return c.err
}

// Await blocks until the call settles or ctx is done. On success the reply
// value is decoded into result, which may be nil to discard it. A done ctx
// only stops the wait; the call itself stays pending.
func (c *Call) Await(ctx context.Context, result interface{}) error {
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.err != nil {
		return c.err
	}
	if result == nil || isNull(c.result) {
		// No result
		return nil
	}
	return jsonAPI.Unmarshal(c.result, result)
}

// Result returns the raw reply value. It blocks until the call settles.
func (c *Call) Result() (json.RawMessage, error) {
	<-c.done
	return c.result, c.err
}

// PendingTable tracks outstanding calls by correlation id.
type PendingTable struct {
	// IDs allocates correlation ids, defaults to Counter().
	IDs IDGenerator

	mu    sync.Mutex
	calls map[string]*Call
}

// Create allocates a fresh id and stores a new pending Call under it.
func (t *PendingTable) Create(name string, args []interface{}) *Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.IDs == nil {
		t.IDs = Counter()
	}
	if t.calls == nil {
		t.calls = map[string]*Call{}
	}
	id := t.IDs.NextID()
	for t.calls[id] != nil {
		id = t.IDs.NextID()
	}
	call := newCall(id, name, args)
	t.calls[id] = call
	return call
}

// Settle removes the call with the given id and fulfils it with either the
// result or err. Unknown ids (stray or duplicate replies) are dropped and
// false is returned.
func (t *PendingTable) Settle(id string, result json.RawMessage, err error) bool {
	t.mu.Lock()
	call, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	call.settle(result, err)
	return true
}

// Len returns the number of pending calls.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// Oldest returns up to num pending calls, oldest first. num <= 0 returns
// all of them.
func (t *PendingTable) Oldest(num int) []*Call {
	t.mu.Lock()
	queue := make(pendingQueue, 0, len(t.calls))
	for _, call := range t.calls {
		queue = append(queue, call)
	}
	t.mu.Unlock()

	sort.Sort(queue)
	if num > 0 && num < len(queue) {
		queue = queue[:num]
	}
	return queue
}

type pendingQueue []*Call

func (p pendingQueue) Len() int {
	return len(p)
}

func (p pendingQueue) Less(i, j int) bool {
	return p[i].Started.Before(p[j].Started)
}

func (p pendingQueue) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}
