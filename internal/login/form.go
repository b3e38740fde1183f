package login

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shindakun/loginform/internal/models"
)

var (
	// ErrUnmounted is returned by operations on a closed Form
	ErrUnmounted = errors.New("login form unmounted")
	// ErrUnknownField is returned by SubmitField for names other than username and password
	ErrUnknownField = errors.New("unknown form field")
)

// Authenticator performs the network call against the login service
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (string, error)
}

// Hook runs on the form goroutine for every transition, before the new
// state becomes visible through State
type Hook func(prev, next models.FormState, ev Event)

// Observer receives every login result on the goroutine that performed the
// request, before the result is dispatched. It runs even when the form has
// been unmounted and may block without stalling the form.
type Observer func(ev Event)

// Option configures a Form
type Option func(*Form)

// WithHooks adds hooks, run in the order given
func WithHooks(hooks ...Hook) Option {
	return func(f *Form) {
		f.hooks = append(f.hooks, hooks...)
	}
}

// WithObserver adds a login result observer
func WithObserver(obs Observer) Option {
	return func(f *Form) {
		f.observers = append(f.observers, obs)
	}
}

type envelope struct {
	ev  Event
	ack chan result
}

type result struct {
	state models.FormState
	err   error
}

// Form owns the state of one mounted login form. All state changes are
// applied in order by a single goroutine; callers block until their event
// is committed.
type Form struct {
	id        string
	auth      Authenticator
	hooks     []Hook
	observers []Observer
	logger    *log.Logger

	events    chan envelope
	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup

	mu    sync.RWMutex
	state models.FormState
}

// New creates a Form with an empty state and starts its event loop
func New(id string, auth Authenticator, logger *log.Logger, opts ...Option) *Form {
	f := &Form{
		id:     id,
		auth:   auth,
		logger: logger,
		events: make(chan envelope),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(f)
	}

	go f.run()

	return f
}

// ID returns the mount id of the form
func (f *Form) ID() string {
	return f.id
}

// State returns a snapshot of the last committed state
func (f *Form) State() models.FormState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// SubmitField sets the username or password field. No validation is
// performed on the value.
func (f *Form) SubmitField(name, value string) (models.FormState, error) {
	if !models.IsField(name) {
		return f.State(), fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f.dispatch(FieldEdited{Name: name, Value: value})
}

// Submit marks the form as loading and sends the committed credentials to
// the login service in the background. The request is not bound to the
// caller, has no timeout of its own and is never retried. Submitting while
// a request is already in flight starts another request.
func (f *Form) Submit() (models.FormState, error) {
	return f.dispatch(Submitted{})
}

// Close unmounts the form. Requests already in flight run to completion but
// their results are discarded.
func (f *Form) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
	})
}

// Done is closed when the form is unmounted
func (f *Form) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until all in-flight login requests have resolved
func (f *Form) Wait() {
	f.inflight.Wait()
}

func (f *Form) dispatch(ev Event) (models.FormState, error) {
	env := envelope{ev: ev, ack: make(chan result, 1)}

	select {
	case f.events <- env:
	case <-f.done:
		return models.FormState{}, ErrUnmounted
	}

	// The loop always acknowledges an event it has received
	r := <-env.ack
	return r.state, r.err
}

func (f *Form) run() {
	for {
		select {
		case env := <-f.events:
			select {
			case <-f.done:
				env.ack <- result{err: ErrUnmounted}
			default:
				env.ack <- result{state: f.commit(env.ev)}
			}
		case <-f.done:
			return
		}
	}
}

// commit is only called from the loop goroutine, the sole writer of state
func (f *Form) commit(ev Event) models.FormState {
	prev := f.State()
	next := Reduce(prev, ev)

	// A reader that sees the new token must also see its cookie write
	for _, hook := range f.hooks {
		hook(prev, next, ev)
	}

	f.mu.Lock()
	f.state = next
	f.mu.Unlock()

	if _, ok := ev.(Submitted); ok {
		f.startLogin(models.Credentials{Username: next.Username, Password: next.Password})
	}

	return next
}

func (f *Form) startLogin(creds models.Credentials) {
	f.inflight.Add(1)

	go func() {
		defer f.inflight.Done()

		start := time.Now()
		token, err := f.auth.Login(context.Background(), creds)
		elapsed := time.Since(start)

		var ev Event
		if err != nil {
			ev = LoginFailed{Message: err.Error(), Err: err, Username: creds.Username, Elapsed: elapsed}
		} else {
			ev = LoginSucceeded{Token: token, Username: creds.Username, Elapsed: elapsed}
		}

		for _, obs := range f.observers {
			obs(ev)
		}

		if _, err := f.dispatch(ev); err != nil {
			f.logger.Printf("Discarding login result for mount %s: %v", f.id, err)
		}
	}()
}
