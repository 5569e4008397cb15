// Package session keeps track of who is signed in to the tutorhub API, and of their profile.
//
// A single goroutine owns the session state. API calls, their results and the auth events
// streamed by the server are all messages handled in order by that goroutine, so every
// transition settles in one place. Each operation has an id: when a newer request supersedes
// it, its context is cancelled and its late result is dropped.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/tutorhub/client"
	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

// API is the part of the tutorhub client a session drives.
type API interface {
	SignUp(ctx context.Context, email, pwd, role string) (user.User, error)
	SignIn(ctx context.Context, email, pwd string) (client.SignInResult, error)
	SignOut(ctx context.Context, token string) error
	RefreshToken(ctx context.Context, token string) (string, error)
	CurrentUser(ctx context.Context, token string) (user.User, error)
	Profile(ctx context.Context, token, userID string) (profile.Profile, error)
	EnsureProfile(ctx context.Context, token string) (profile.Profile, error)
	Events(ctx context.Context, token string) (<-chan core.AuthEvent, error)
}

var _ API = (*client.Client)(nil) // interface compliance check

const (
	DefaultTimeout = 10 * time.Second
	tokenKey       = "token"

	// auth event stream reconnection backoff
	eventsRetryMin    = 250 * time.Millisecond
	eventsRetryMax    = 30 * time.Second
	eventsStableAfter = time.Minute
)

func profileKey(userID string) string { return "profile:" + userID }

type opKind int

const (
	opInit opKind = iota
	opSignIn
	opSignUp
	opSignOut
	opRefresh
	opProfile
)

type (
	outcome struct {
		state State
		err   error
	}

	// request is posted by the public methods; reply is buffered.
	request struct {
		kind       opKind
		clear      bool
		email, pwd string
		role       string
		reply      chan outcome
	}

	// result is posted by the goroutine running operation id.
	result struct {
		id    uint64
		token string
		usr   user.User
		prof  profile.Profile
		err   error
	}

	// event is posted by the auth event stream of generation gen.
	event struct {
		gen uint64
		evt core.AuthEvent
	}

	// streamEnded is posted once the auth event stream of generation gen stops on its own.
	streamEnded struct {
		gen       uint64
		connected bool
		lasted    time.Duration
		err       error
	}

	operation struct {
		kind   opKind
		email  string
		cancel context.CancelFunc
		reply  chan outcome // nil when nobody waits
	}
)

func (op *operation) settle(state State, err error) {
	if op.reply != nil {
		op.reply <- outcome{state: state, err: err}
		op.reply = nil
	}
}

type Manager struct {
	api     API
	store   Storage
	logger  core.Logger
	timeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	msgs      chan interface{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	snapshot State

	// owned by the run goroutine
	state      State
	seq        uint64
	ops        map[uint64]*operation
	eventsGen  uint64
	eventsTry  int // reconnections since the stream was last stable
	stopEvents context.CancelFunc
	signingOut chan struct{} // closed once the last remote sign out returned
}

// New starts a session manager in the initializing status; call Init to restore a persisted session.
// A zero timeout uses DefaultTimeout for every operation.
func New(api API, store Storage, logger core.Logger, timeout time.Duration) (*Manager, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(api, "api"),
		vala.IsNotNil(store, "store"),
	).Check(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		api:     api,
		store:   store,
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		msgs:    make(chan interface{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   State{Status: StatusInitializing},
		ops:     make(map[uint64]*operation),
	}
	m.publish()
	go m.run()
	return m, nil
}

// State returns the latest settled or transient snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Init restores the persisted session, if any.
func (m *Manager) Init(ctx context.Context) (State, error) {
	return m.call(ctx, request{kind: opInit})
}

// SignIn replaces the current session. An unconfirmed account lands in StatusUnverified.
func (m *Manager) SignIn(ctx context.Context, email, pwd string) (State, error) {
	return m.call(ctx, request{kind: opSignIn, email: email, pwd: pwd})
}

// SignUp registers an account, which stays unverified until its email is confirmed.
func (m *Manager) SignUp(ctx context.Context, email, pwd, role string) (State, error) {
	return m.call(ctx, request{kind: opSignUp, email: email, pwd: pwd, role: role})
}

// SignOut forgets the session locally at once, then revokes it on the server.
func (m *Manager) SignOut(ctx context.Context) (State, error) {
	return m.call(ctx, request{kind: opSignOut})
}

// ClearAll signs out and wipes every persisted entry.
func (m *Manager) ClearAll(ctx context.Context) (State, error) {
	return m.call(ctx, request{kind: opSignOut, clear: true})
}

// Refresh exchanges the session token for a new one.
func (m *Manager) Refresh(ctx context.Context) (State, error) {
	return m.call(ctx, request{kind: opRefresh})
}

// Close stops the manager and cancels every running operation.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.quit) })
	<-m.done
}

// call posts req and waits until it settles. Giving up on ctx does not cancel the operation.
func (m *Manager) call(ctx context.Context, req request) (State, error) {
	req.reply = make(chan outcome, 1)
	if !m.post(req) {
		return m.State(), ErrClosed
	}
	select {
	case out := <-req.reply:
		return out.state, out.err
	case <-ctx.Done():
		return m.State(), ctx.Err()
	case <-m.done:
		return m.State(), ErrClosed
	}
}

func (m *Manager) post(msg interface{}) bool {
	select {
	case m.msgs <- msg:
		return true
	case <-m.quit:
		return false
	}
}

func (m *Manager) publish() {
	m.mu.Lock()
	m.snapshot = m.state
	m.mu.Unlock()
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		select {
		case msg := <-m.msgs:
			switch msg := msg.(type) {
			case request:
				m.handleRequest(msg)
			case result:
				m.handleResult(msg)
			case event:
				m.handleEvent(msg)
			case streamEnded:
				m.handleStreamEnded(msg)
			}
			m.publish()

		case <-m.quit:
			for id, op := range m.ops {
				op.cancel()
				op.settle(m.state, ErrClosed)
				delete(m.ops, id)
			}
			m.stopEventStream()
			m.cancel()
			return
		}
	}
}

// start runs fn in its own goroutine, with its own timeout, and posts its result back.
func (m *Manager) start(op *operation, fn func(ctx context.Context) result) {
	m.seq++
	id := m.seq
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	op.cancel = cancel
	m.ops[id] = op
	go func() {
		res := fn(ctx)
		res.id = id
		m.post(res)
	}()
}

// supersede cancels the running operations of the given kinds (all but sign outs when none).
// Their waiters get ErrSuperseded unless adopted by the caller.
func (m *Manager) supersede(kinds ...opKind) (adopted chan outcome) {
	for id, op := range m.ops {
		if !matches(op.kind, kinds) {
			continue
		}
		op.cancel()
		delete(m.ops, id)
		if op.kind == opProfile && adopted == nil && len(kinds) > 0 {
			adopted = op.reply
			continue
		}
		op.settle(m.state, ErrSuperseded)
	}
	return adopted
}

func matches(kind opKind, kinds []opKind) bool {
	if len(kinds) == 0 {
		return kind != opSignOut
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (m *Manager) handleRequest(req request) {
	op := &operation{kind: req.kind, email: req.email, reply: req.reply}

	switch req.kind {
	case opInit:
		m.supersede()
		m.stopEventStream()
		m.state = State{Status: StatusInitializing}
		token := m.readToken()
		if token == "" {
			m.state = State{Status: StatusAnonymous}
			op.settle(m.state, nil)
			return
		}
		m.start(op, func(ctx context.Context) result {
			usr, err := m.api.CurrentUser(ctx, token)
			return result{token: token, usr: usr, err: err}
		})

	case opSignIn:
		m.supersede()
		m.stopEventStream()
		m.state = State{Status: StatusAuthenticating, Email: req.email}
		signingOut := m.signingOut
		m.start(op, func(ctx context.Context) result {
			if signingOut != nil { // a late revocation would kill the new session
				select {
				case <-signingOut:
				case <-ctx.Done():
					return result{err: ctx.Err()}
				}
			}
			res, err := m.api.SignIn(ctx, req.email, req.pwd)
			return result{token: res.Token, usr: res.User, err: err}
		})

	case opSignUp:
		m.supersede()
		m.stopEventStream()
		m.forget(m.state)
		m.state = State{Status: StatusAuthenticating, Email: req.email}
		m.start(op, func(ctx context.Context) result {
			usr, err := m.api.SignUp(ctx, req.email, req.pwd, req.role)
			return result{usr: usr, err: err}
		})

	case opSignOut:
		prev := m.state
		m.supersede()
		m.stopEventStream()
		m.forget(prev)
		m.state = State{Status: StatusAnonymous}
		if req.clear {
			if err := m.store.Clear(); err != nil {
				m.logger.Error("clearing session storage", err)
			}
		}
		if prev.Token == "" {
			op.settle(m.state, nil)
			return
		}
		done := make(chan struct{})
		m.signingOut = done
		m.start(op, func(ctx context.Context) result {
			defer close(done)
			return result{err: m.api.SignOut(ctx, prev.Token)}
		})

	case opRefresh:
		if m.state.Token == "" || !m.state.Settled() {
			op.settle(m.state, ErrNoSession)
			return
		}
		m.supersede(opRefresh)
		token := m.state.Token
		m.start(op, func(ctx context.Context) result {
			newToken, err := m.api.RefreshToken(ctx, token)
			return result{token: newToken, err: err}
		})
	}
}

func (m *Manager) handleResult(res result) {
	op, ok := m.ops[res.id]
	if !ok {
		return // superseded
	}
	delete(m.ops, res.id)
	op.cancel()

	switch op.kind {
	case opInit:
		if res.err != nil {
			m.state = State{Status: StatusAnonymous, Message: userMessage(res.err)}
			if client.IsUnauthorized(res.err) {
				m.deleteEntry(tokenKey)
				op.settle(m.state, nil)
				return
			}
			op.settle(m.state, userError(res.err))
			return
		}
		m.authenticated(op, StatusInitializing, res.token, res.usr)

	case opSignIn:
		if res.err != nil {
			m.state = State{Status: StatusAnonymous, Email: op.email, Message: userMessage(res.err)}
			if client.ErrorCode(res.err) == "email_not_confirmed" {
				m.state.Status = StatusUnverified
			}
			op.settle(m.state, userError(res.err))
			return
		}
		m.writeToken(res.token)
		m.authenticated(op, StatusAuthenticating, res.token, res.usr)

	case opSignUp:
		if res.err != nil {
			m.state = State{Status: StatusAnonymous, Email: op.email, Message: userMessage(res.err)}
			op.settle(m.state, userError(res.err))
			return
		}
		usr := res.usr
		m.state = State{Status: StatusUnverified, Email: usr.Email, User: &usr}
		op.settle(m.state, nil)

	case opSignOut:
		err := res.err
		if client.IsUnauthorized(err) { // already revoked
			err = nil
		}
		op.settle(m.state, userError(err))

	case opRefresh:
		if res.err != nil {
			if client.IsUnauthorized(res.err) {
				m.endSession(userMessage(res.err))
			}
			op.settle(m.state, userError(res.err))
			return
		}
		m.state.Token = res.token
		m.writeToken(res.token)
		op.settle(m.state, nil)

	case opProfile:
		if res.err != nil {
			m.logger.Warn("loading profile", res.err)
			m.state.Status = StatusNoProfile
			m.state.Profile = nil
			m.state.Message = userMessage(res.err)
		} else {
			prof := res.prof
			m.state.Status = StatusAuthenticated
			m.state.Profile = &prof
			m.state.Message = ""
		}
		op.settle(m.state, nil)
	}
}

// authenticated records the signed in user, then settles once the profile is loaded.
func (m *Manager) authenticated(op *operation, status Status, token string, usr user.User) {
	m.state = State{Status: status, Email: usr.Email, Token: token, User: &usr}
	if !usr.IsConfirmed() {
		m.state.Status = StatusUnverified
		op.settle(m.state, nil)
		return
	}
	m.eventsTry = 0
	m.startEventStream(token, usr.ID, 0)
	m.loadProfile(op.reply)
}

// loadProfile (re)loads the profile of the current user; reply is settled with the outcome.
func (m *Manager) loadProfile(reply chan outcome) {
	if adopted := m.supersede(opProfile); reply == nil {
		reply = adopted
	} else if adopted != nil {
		adopted <- outcome{state: m.state, err: ErrSuperseded}
	}
	token, usr := m.state.Token, *m.state.User
	m.start(&operation{kind: opProfile, reply: reply}, func(ctx context.Context) result {
		prof, err := m.fetchProfile(ctx, token, usr)
		return result{prof: prof, err: err}
	})
}

// fetchProfile reads the cached profile, then the API's, creating it when missing.
func (m *Manager) fetchProfile(ctx context.Context, token string, usr user.User) (profile.Profile, error) {
	key := profileKey(usr.ID)
	if data, ok, err := m.store.Get(key); err == nil && ok {
		var prof profile.Profile
		if err = json.Unmarshal(data, &prof); err == nil && prof.UserID == usr.ID {
			return prof, nil
		}
	}

	prof, err := m.api.Profile(ctx, token, usr.ID)
	if client.IsNotFound(err) {
		prof, err = m.api.EnsureProfile(ctx, token)
	}
	if err != nil {
		return profile.Profile{}, err
	}

	if data, err := json.Marshal(prof); err == nil {
		if err = m.store.Set(key, data); err != nil {
			m.logger.Warn("caching profile", err)
		}
	}
	return prof, nil
}

func (m *Manager) handleEvent(e event) {
	if e.gen != m.eventsGen || m.state.User == nil || e.evt.UserID != m.state.User.ID {
		return
	}
	switch e.evt.Type {
	case core.EventSignedOut:
		m.endSession("You have been signed out.")
	case core.EventPasswordRecovery:
		m.endSession("A password reset was requested. Please sign in again.")
	case core.EventUserUpdated:
		m.deleteEntry(profileKey(m.state.User.ID))
		m.loadProfile(nil)
	}
	// signed_in & token_refreshed echo transitions that were already settled here
}

// endSession drops the current session without calling the API.
func (m *Manager) endSession(msg string) {
	prev := m.state
	m.supersede()
	m.stopEventStream()
	m.forget(prev)
	m.state = State{Status: StatusAnonymous, Message: msg}
}

// startEventStream subscribes to the auth events of userID after delay.
func (m *Manager) startEventStream(token, userID string, delay time.Duration) {
	m.stopEventStream()
	m.eventsGen++
	gen := m.eventsGen
	ctx, cancel := context.WithCancel(m.ctx)
	m.stopEvents = cancel

	go func() {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return
			}
		}

		events, err := m.api.Events(ctx, token)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("subscribing to auth events", err, map[string]interface{}{"user_id": userID})
				m.post(streamEnded{gen: gen, err: err})
			}
			return
		}
		start := time.Now()
		for evt := range events {
			if !m.post(event{gen: gen, evt: evt}) {
				return
			}
		}
		if ctx.Err() == nil {
			m.post(streamEnded{gen: gen, connected: true, lasted: time.Since(start)})
		}
	}()
}

// handleStreamEnded resubscribes with an exponential backoff while the session is current.
// A rejected token means the session was revoked while the stream was down.
func (m *Manager) handleStreamEnded(e streamEnded) {
	if e.gen != m.eventsGen || m.state.User == nil || m.state.Token == "" {
		return
	}
	if client.IsUnauthorized(e.err) {
		m.endSession(userMessage(e.err))
		return
	}
	if e.connected && e.lasted >= eventsStableAfter {
		m.eventsTry = 0
	}
	delay := eventsRetryMin << uint(m.eventsTry)
	if delay > eventsRetryMax || delay <= 0 {
		delay = eventsRetryMax
	} else {
		m.eventsTry++
	}
	m.logger.Info("auth events stream ended, reconnecting", map[string]interface{}{
		"user_id": m.state.User.ID,
		"delay":   delay.String(),
	})
	m.startEventStream(m.state.Token, m.state.User.ID, delay)
}

func (m *Manager) stopEventStream() {
	if m.stopEvents != nil {
		m.stopEvents()
		m.stopEvents = nil
	}
}

// forget deletes the persisted entries of the session.
func (m *Manager) forget(s State) {
	m.deleteEntry(tokenKey)
	if s.User != nil {
		m.deleteEntry(profileKey(s.User.ID))
	}
}

func (m *Manager) readToken() string {
	data, ok, err := m.store.Get(tokenKey)
	if err != nil {
		m.logger.Warn("reading session token", err)
		return ""
	}
	if !ok {
		return ""
	}
	return string(data)
}

func (m *Manager) writeToken(token string) {
	if err := m.store.Set(tokenKey, []byte(token)); err != nil {
		m.logger.Warn("persisting session token", err)
	}
}

func (m *Manager) deleteEntry(key string) {
	if err := m.store.Delete(key); err != nil {
		m.logger.Warn("deleting session entry", err, map[string]interface{}{"key": key})
	}
}
