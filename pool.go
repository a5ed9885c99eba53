package msl

import "sync"

// pool is a generic, mutex-protected free list (spec §2 "Pools",
// §5 "each pool has its own lock"). The realtime kernel context must
// never call alloc; it drains what the shell side pre-fills via Fluff
// (spec §5: "the kernel thread MUST NOT call alloc — it must be pre-filled
// by the shell via a 'fluff' operation before the kernel runs low").
type pool[T any] struct {
	mu    sync.Mutex
	free  []*T
	new   func() *T
	reset func(*T)

	// starved counts how many times Get had to allocate outside of Fluff
	// because the free list was empty — "if the kernel ever has to
	// allocate it traces a loud error" (spec §5).
	starved int64
}

func newPool[T any](newFn func() *T, resetFn func(*T)) *pool[T] {
	return &pool[T]{new: newFn, reset: resetFn}
}

// Fluff replenishes the pool up to n items. Called only from the shell
// context's periodic maintenance.
func (p *pool[T]) Fluff(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.free) < n {
		p.free = append(p.free, p.new())
	}
}

// Get removes one item from the free list, allocating (and counting a
// starvation event) if none is available.
func (p *pool[T]) Get() *T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		p.starved++
		return p.new()
	}
	n := len(p.free) - 1
	item := p.free[n]
	p.free = p.free[:n]
	return item
}

func (p *pool[T]) Put(item *T) {
	if p.reset != nil {
		p.reset(item)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, item)
}

func (p *pool[T]) Starved() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starved
}

// pools bundles one pool per kind named in spec §2's component table:
// values, bindings, stack frames, sessions, messages, and compile errors.
type pools struct {
	values   *pool[Value]
	bindings *pool[Binding]
	frames   *pool[StackFrame]
	sessions *pool[Session]
	messages *pool[Message]
	errors   *pool[CompileError]
}

func newPools() *pools {
	return &pools{
		values:   newPool(func() *Value { return &Value{} }, func(v *Value) { *v = Value{} }),
		bindings: newPool(func() *Binding { return &Binding{} }, func(b *Binding) { *b = Binding{} }),
		frames:   newPool(func() *StackFrame { return &StackFrame{} }, func(f *StackFrame) { *f = StackFrame{} }),
		sessions: newPool(func() *Session { return &Session{} }, resetSession),
		messages: newPool(func() *Message { return &Message{} }, func(m *Message) { *m = Message{} }),
		errors:   newPool(func() *CompileError { return &CompileError{} }, func(e *CompileError) { *e = CompileError{} }),
	}
}

// FluffAll tops off every pool; called from the shell's periodic
// maintenance ahead of kernel demand (spec §9 "Pools").
func (ps *pools) FluffAll(n int) {
	ps.values.Fluff(n)
	ps.bindings.Fluff(n)
	ps.frames.Fluff(n)
	ps.sessions.Fluff(n)
	ps.messages.Fluff(n)
	ps.errors.Fluff(n)
}
