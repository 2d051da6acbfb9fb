// Package reactive is the thin runtime contract that generated model code
// compiles against. It deliberately carries no stream semantics of its own:
// change notification, command dispatch and trigger scheduling are wired by
// generated code, and the hosting application decides how notifications are
// actually delivered by providing a Notifier.
package reactive

import (
	"context"
	"sync"
)

// ChangeKey is a qualified change-notification key such as
// "LoginModel.Username" or "LoginModel.Session.Current" for a change that
// surfaced through a referenced model.
type ChangeKey string

// AsyncMode controls how overlapping async trigger invocations are handled.
type AsyncMode int

const (
	// ModeSwitch cancels the in-flight invocation before starting a new one.
	ModeSwitch AsyncMode = iota
	// ModeMerge lets invocations run and ignores new changes until done.
	ModeMerge
	// ModeConcurrent runs every invocation independently.
	ModeConcurrent
)

func (m AsyncMode) String() string {
	switch m {
	case ModeMerge:
		return "merge"
	case ModeConcurrent:
		return "concurrent"
	default:
		return "switch"
	}
}

// Subscription is a handle to an active trigger subscription.
type Subscription interface {
	Unsubscribe()
}

// Notifier delivers change notifications to subscribers. Generated setters
// publish to it and generated trigger wiring subscribes to it.
type Notifier interface {
	Publish(key ChangeKey)
	Subscribe(key ChangeKey, fn func(ChangeKey)) Subscription
}

// Command binds a user-declared execute method and an optional can-execute
// predicate. Generated code constructs commands via NewCommand and components
// invoke them.
type Command struct {
	execute    func(context.Context) error
	canExecute func() bool
}

// NewCommand builds a command from an execute function and an optional
// can-execute predicate (nil means always executable).
func NewCommand(execute func(context.Context) error, canExecute func() bool) *Command {
	return &Command{execute: execute, canExecute: canExecute}
}

// CanExecute reports whether the command may run right now.
func (c *Command) CanExecute() bool {
	if c.canExecute == nil {
		return true
	}
	return c.canExecute()
}

// Execute runs the command if its predicate allows it.
func (c *Command) Execute(ctx context.Context) error {
	if !c.CanExecute() {
		return nil
	}
	return c.execute(ctx)
}

// LocalNotifier is an in-process Notifier used by generated tests and by
// applications that do not bring their own delivery mechanism. Delivery is
// synchronous and in subscription order.
type LocalNotifier struct {
	mu   sync.Mutex
	next int
	subs []*localSub
}

type localSub struct {
	id  int
	key ChangeKey
	fn  func(ChangeKey)
	n   *LocalNotifier
}

// NewLocalNotifier returns an empty LocalNotifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{}
}

// Publish delivers key to every subscriber registered for it.
func (n *LocalNotifier) Publish(key ChangeKey) {
	n.mu.Lock()
	matched := make([]func(ChangeKey), 0, len(n.subs))
	for _, s := range n.subs {
		if s.key == key {
			matched = append(matched, s.fn)
		}
	}
	n.mu.Unlock()
	for _, fn := range matched {
		fn(key)
	}
}

// Subscribe registers fn for key and returns its handle.
func (n *LocalNotifier) Subscribe(key ChangeKey, fn func(ChangeKey)) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	s := &localSub{id: n.next, key: key, fn: fn, n: n}
	n.subs = append(n.subs, s)
	return s
}

// Unsubscribe removes the subscription from its notifier.
func (s *localSub) Unsubscribe() {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	subs := s.n.subs[:0]
	for _, other := range s.n.subs {
		if other.id != s.id {
			subs = append(subs, other)
		}
	}
	s.n.subs = subs
}

// AsyncRunner schedules async trigger bodies according to an AsyncMode.
// Generated wiring owns one runner per async trigger.
type AsyncRunner struct {
	mode AsyncMode

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewAsyncRunner returns a runner for the given mode.
func NewAsyncRunner(mode AsyncMode) *AsyncRunner {
	return &AsyncRunner{mode: mode}
}

// Run schedules fn. Switch mode cancels the previous invocation, merge mode
// drops the new one while a previous invocation is still running, concurrent
// mode always starts a fresh goroutine.
func (r *AsyncRunner) Run(parent context.Context, fn func(context.Context)) {
	switch r.mode {
	case ModeMerge:
		r.mu.Lock()
		if r.running {
			r.mu.Unlock()
			return
		}
		r.running = true
		r.mu.Unlock()
		go func() {
			defer func() {
				r.mu.Lock()
				r.running = false
				r.mu.Unlock()
			}()
			fn(parent)
		}()
	case ModeConcurrent:
		go fn(parent)
	default: // switch
		r.mu.Lock()
		if r.cancel != nil {
			r.cancel()
		}
		ctx, cancel := context.WithCancel(parent)
		r.cancel = cancel
		r.mu.Unlock()
		go fn(ctx)
	}
}

// Model is the state holder every annotated model type embeds. Generated
// code stores the attached notifier, lazily built commands and live
// subscriptions in it; user code never touches it directly.
type Model struct {
	mu       sync.Mutex
	notifier Notifier
	commands map[string]*Command
	subs     []Subscription
}

// Attach connects the model to its notifier. Generated Wire methods call it
// before registering subscriptions.
func (m *Model) Attach(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

// Publish emits a change key through the attached notifier. Detached models
// drop notifications silently; setters stay callable before wiring.
func (m *Model) Publish(key ChangeKey) {
	m.mu.Lock()
	n := m.notifier
	m.mu.Unlock()
	if n != nil {
		n.Publish(key)
	}
}

// Watch subscribes fn to key on the attached notifier and records the
// subscription for Detach.
func (m *Model) Watch(key ChangeKey, fn func(ChangeKey)) Subscription {
	m.mu.Lock()
	n := m.notifier
	m.mu.Unlock()
	if n == nil {
		return nil
	}
	sub := n.Subscribe(key, fn)
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return sub
}

// Command returns the named command, building it on first use.
func (m *Model) Command(name string, build func() *Command) *Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commands == nil {
		m.commands = make(map[string]*Command)
	}
	if c, ok := m.commands[name]; ok {
		return c
	}
	c := build()
	m.commands[name] = c
	return c
}

// Detach drops every recorded subscription and disconnects the notifier.
func (m *Model) Detach() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.notifier = nil
	m.mu.Unlock()
	for _, s := range subs {
		if s != nil {
			s.Unsubscribe()
		}
	}
}

// ModelMeta is returned by the marker method emitted into every generated
// model file. It is how the resolver recognizes models in already-compiled
// packages where directive comments are no longer visible.
type ModelMeta struct {
	// Name is the fully qualified model name, "pkgpath.Type".
	Name string
	// Scope is the declared lifetime: "transient", "scoped" or "singleton".
	Scope string
	// ChangeKeys lists the model's own qualified change keys in declared order.
	ChangeKeys []ChangeKey
	// Hooks lists hook method names generated for the companion component.
	Hooks []string
}
