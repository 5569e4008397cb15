package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/client"
	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	emailsvc "github.com/trezcool/tutorhub/services/email"
	"github.com/trezcool/tutorhub/session"
	"github.com/trezcool/tutorhub/tests"
	"github.com/trezcool/tutorhub/tests/apitest"
)

const (
	goodPwd  = "Tr1cky#Pass"
	waitFor  = 3 * time.Second
	tickEach = 20 * time.Millisecond
)

func newManager(t *testing.T, api session.API, store session.Storage, timeout time.Duration) *session.Manager {
	t.Helper()
	m, err := session.New(api, store, testutil.NopLogger{}, timeout)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func newAPIClient(t *testing.T) (*client.Client, *testutil.App) {
	t.Helper()
	srv, app := apitest.NewServer(t)
	c, err := client.New(srv.URL, nil)
	require.NoError(t, err)
	return c, app
}

func strPtr(s string) *string { return &s }

// createStudent stores a confirmed student, with a profile, signing in with goodPwd.
func createStudent(t *testing.T, app *testutil.App, email string) user.User {
	t.Helper()
	usr := testutil.CreateUser(t, app.UserRepo, email, goodPwd, user.RoleStudent)
	testutil.CreateProfile(t, app.ProfRepo, usr, profile.StatusApproved, "Student", "Lovelace")
	return usr
}

func TestNew(t *testing.T) {
	c, _ := newAPIClient(t)

	_, err := session.New(nil, session.NewMemoryStorage(), testutil.NopLogger{}, 0)
	assert.Error(t, err)
	_, err = session.New(c, nil, testutil.NopLogger{}, 0)
	assert.Error(t, err)

	m := newManager(t, c, session.NewMemoryStorage(), 0)
	assert.Equal(t, session.StatusInitializing, m.State().Status)
	assert.False(t, m.State().Settled())
}

func TestManager_signUpAndSignIn(t *testing.T) {
	c, _ := newAPIClient(t)
	store := session.NewMemoryStorage()
	m := newManager(t, c, store, 0)
	ctx := context.Background()

	st, err := m.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAnonymous, st.Status)

	st, err = m.SignUp(ctx, "ada@tutorhub.test", "weak", user.RoleStudent)
	var sErr *session.Error
	require.True(t, errors.As(err, &sErr), "%v", err)
	assert.Contains(t, sErr.Message, "password")
	assert.Equal(t, session.StatusAnonymous, st.Status)

	st, err = m.SignUp(ctx, "ada@tutorhub.test", goodPwd, user.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, session.StatusUnverified, st.Status)
	assert.Equal(t, "ada@tutorhub.test", st.Email)
	assert.Empty(t, st.Token)

	// signing in before confirming the email is not a session
	st, err = m.SignIn(ctx, "ada@tutorhub.test", goodPwd)
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, "email_not_confirmed", client.ErrorCode(err))
	assert.Equal(t, session.StatusUnverified, st.Status)
	assert.False(t, st.SignedIn())
	assert.Equal(t, sErr.Message, st.Message)

	st, err = m.SignIn(ctx, "ada@tutorhub.test", "Wr0ng#Pass")
	assert.Error(t, err)
	assert.Equal(t, session.StatusAnonymous, st.Status)
	assert.Equal(t, "Invalid email or password.", st.Message)

	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	require.Equal(t, "confirm_email", msg.TemplateName)
	data := msg.TemplateData.(map[string]interface{})
	_, err = c.ConfirmEmail(ctx, data["UID"].(string), data["Token"].(string))
	require.NoError(t, err)

	st, err = m.SignIn(ctx, "ada@tutorhub.test", goodPwd)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAuthenticated, st.Status)
	assert.True(t, st.SignedIn())
	assert.Equal(t, user.RoleStudent, st.Role())
	require.NotNil(t, st.Profile)
	assert.Equal(t, user.RoleStudent, st.Profile.Role, "profile created from the sign up role")
	assert.Empty(t, st.Profile.FullName(), "no name is made up")
	assert.Empty(t, st.Message)
	assert.Equal(t, st, m.State())

	token, ok, err := store.Get("token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, st.Token, string(token))
	cached, ok, err := store.Get("profile:" + st.User.ID)
	require.NoError(t, err)
	require.True(t, ok)
	var prof profile.Profile
	require.NoError(t, json.Unmarshal(cached, &prof))
	assert.Equal(t, st.Profile.ID, prof.ID)
}

func TestManager_Init(t *testing.T) {
	c, app := newAPIClient(t)
	ctx := context.Background()
	usr := createStudent(t, app, "ada@tutorhub.test")
	testutil.CreateUser(t, app.UserRepo, "bob@tutorhub.test", goodPwd, user.RoleStudent)

	store := session.NewMemoryStorage()
	first := newManager(t, c, store, 0)
	_, err := first.SignIn(ctx, usr.Email, goodPwd)
	require.NoError(t, err)
	first.Close()

	t.Run("restores persisted session", func(t *testing.T) {
		m := newManager(t, c, store, 0)
		st, err := m.Init(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.StatusAuthenticated, st.Status)
		assert.Equal(t, usr.ID, st.User.ID)
		assert.Equal(t, "Student", st.Profile.FirstName)
	})

	t.Run("revoked token", func(t *testing.T) {
		revoked := session.NewMemoryStorage()
		res, err := c.SignIn(ctx, "bob@tutorhub.test", goodPwd)
		require.NoError(t, err)
		require.NoError(t, revoked.Set("token", []byte(res.Token)))
		require.NoError(t, c.SignOut(ctx, res.Token))

		m := newManager(t, c, revoked, 0)
		st, err := m.Init(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.StatusAnonymous, st.Status)
		assert.NotEmpty(t, st.Message)
		_, ok, _ := revoked.Get("token")
		assert.False(t, ok)
	})

	t.Run("missing profile is created", func(t *testing.T) {
		bare := session.NewMemoryStorage()
		m := newManager(t, c, bare, 0)
		st, err := m.SignIn(ctx, "bob@tutorhub.test", goodPwd)
		require.NoError(t, err)
		assert.Equal(t, session.StatusAuthenticated, st.Status)
		assert.Equal(t, profile.StatusApproved, st.Profile.ApprovalStatus, "students need no approval")
	})
}

func TestManager_authEvents(t *testing.T) {
	c, app := newAPIClient(t)
	ctx := context.Background()
	usr := createStudent(t, app, "ada@tutorhub.test")

	m := newManager(t, c, session.NewMemoryStorage(), 0)
	st, err := m.SignIn(ctx, usr.Email, goodPwd)
	require.NoError(t, err)
	require.Equal(t, session.StatusAuthenticated, st.Status)

	// updates made elsewhere are reloaded; retried until the event stream is up
	assert.Eventually(t, func() bool {
		if _, err := c.UpdateProfile(ctx, st.Token, profile.UpdateProfile{FirstName: strPtr("Grace")}); err != nil {
			return false
		}
		p := m.State().Profile
		return p != nil && p.FirstName == "Grace"
	}, waitFor, 5*tickEach)
	assert.Equal(t, session.StatusAuthenticated, m.State().Status)

	// events of the current sign in are echoes
	require.NoError(t, app.Events.Publish(ctx, core.NewAuthEvent(core.EventSignedIn, usr.ID)))
	require.NoError(t, app.Events.Publish(ctx, core.NewAuthEvent(core.EventTokenRefreshed, usr.ID)))
	time.Sleep(5 * tickEach)
	assert.Equal(t, session.StatusAuthenticated, m.State().Status)

	require.NoError(t, app.Events.Publish(ctx, core.NewAuthEvent(core.EventPasswordRecovery, usr.ID)))
	assert.Eventually(t, func() bool {
		return m.State().Status == session.StatusAnonymous
	}, waitFor, tickEach)
	assert.Nil(t, m.State().User)
	assert.NotEmpty(t, m.State().Message)
}

func TestManager_passwordReset(t *testing.T) {
	c, app := newAPIClient(t)
	ctx := context.Background()
	usr := createStudent(t, app, "ada@tutorhub.test")

	m := newManager(t, c, session.NewMemoryStorage(), 0)
	st, err := m.SignIn(ctx, usr.Email, goodPwd)
	require.NoError(t, err)
	oldToken := st.Token

	// a reset done through the emailed link from another device
	require.NoError(t, c.RequestPasswordReset(ctx, usr.Email))
	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	require.Equal(t, "password_reset", msg.TemplateName)
	data := msg.TemplateData.(map[string]interface{})
	require.NoError(t, c.ResetPassword(ctx, user.ResetUserPassword{
		UID:             data["UID"].(string),
		Token:           data["Token"].(string),
		Password:        "N3w#Secret!",
		PasswordConfirm: "N3w#Secret!",
	}))

	assert.Eventually(t, func() bool {
		return m.State().Status == session.StatusAnonymous
	}, waitFor, tickEach)
	_, err = c.CurrentUser(ctx, oldToken)
	assert.True(t, client.IsUnauthorized(err))

	st, err = m.SignIn(ctx, usr.Email, "N3w#Secret!")
	require.NoError(t, err)
	assert.Equal(t, session.StatusAuthenticated, st.Status)
}

func TestManager_SignOut(t *testing.T) {
	c, app := newAPIClient(t)
	ctx := context.Background()
	usr := createStudent(t, app, "ada@tutorhub.test")
	store := session.NewMemoryStorage()
	require.NoError(t, store.Set("theme", []byte("dark")))

	m := newManager(t, c, store, 0)

	st, err := m.SignOut(ctx)
	require.NoError(t, err, "signing out anonymously is a no-op")
	assert.Equal(t, session.StatusAnonymous, st.Status)

	st, err = m.SignIn(ctx, usr.Email, goodPwd)
	require.NoError(t, err)
	token := st.Token

	st, err = m.SignOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAnonymous, st.Status)
	assert.Empty(t, st.Token)
	_, ok, _ := store.Get("token")
	assert.False(t, ok)
	_, ok, _ = store.Get("profile:" + usr.ID)
	assert.False(t, ok)
	_, ok, _ = store.Get("theme")
	assert.True(t, ok, "unrelated entries are kept")
	_, err = c.CurrentUser(ctx, token)
	assert.True(t, client.IsUnauthorized(err), "token revoked")

	// signing back in right away gets a live session
	st, err = m.SignIn(ctx, usr.Email, goodPwd)
	require.NoError(t, err)
	_, err = c.CurrentUser(ctx, st.Token)
	assert.NoError(t, err)

	st, err = m.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAnonymous, st.Status)
	_, ok, _ = store.Get("theme")
	assert.False(t, ok)
}

func TestManager_Refresh(t *testing.T) {
	c, app := newAPIClient(t)
	ctx := context.Background()
	usr := createStudent(t, app, "ada@tutorhub.test")
	store := session.NewMemoryStorage()
	m := newManager(t, c, store, 0)

	_, err := m.Refresh(ctx)
	assert.Equal(t, session.ErrNoSession, err)

	_, err = m.SignIn(ctx, usr.Email, goodPwd)
	require.NoError(t, err)

	st, err := m.Refresh(ctx)
	require.NoError(t, err)
	token, _, _ := store.Get("token")
	assert.Equal(t, st.Token, string(token))
	_, err = c.CurrentUser(ctx, st.Token)
	assert.NoError(t, err)
}

// fakeAPI answers from funcs; the rest behaves like a healthy server.
type fakeAPI struct {
	signIn  func(ctx context.Context, email string) (client.SignInResult, error)
	profile func(ctx context.Context, userID string) (profile.Profile, error)
	events  func(ctx context.Context, token string) (<-chan core.AuthEvent, error)
}

var _ session.API = (*fakeAPI)(nil)

func confirmedUser(id string) user.User {
	now := time.Now().UTC()
	return user.User{ID: id, Email: id + "@tutorhub.test", Role: user.RoleStudent, IsActive: true, EmailConfirmedAt: &now}
}

func (f *fakeAPI) SignUp(_ context.Context, email, _, role string) (user.User, error) {
	return user.User{ID: "new", Email: email, Role: role, IsActive: true}, nil
}

func (f *fakeAPI) SignIn(ctx context.Context, email, _ string) (client.SignInResult, error) {
	return f.signIn(ctx, email)
}

func (f *fakeAPI) SignOut(context.Context, string) error { return nil }

func (f *fakeAPI) RefreshToken(_ context.Context, token string) (string, error) {
	return token + "+", nil
}

func (f *fakeAPI) CurrentUser(context.Context, string) (user.User, error) {
	return confirmedUser("me"), nil
}

func (f *fakeAPI) Profile(ctx context.Context, _, userID string) (profile.Profile, error) {
	if f.profile != nil {
		return f.profile(ctx, userID)
	}
	return profile.Profile{UserID: userID, Role: user.RoleStudent}, nil
}

func (f *fakeAPI) EnsureProfile(context.Context, string) (profile.Profile, error) {
	return profile.Profile{}, errors.New("unexpected call")
}

func (f *fakeAPI) Events(ctx context.Context, token string) (<-chan core.AuthEvent, error) {
	if f.events != nil {
		return f.events(ctx, token)
	}
	events := make(chan core.AuthEvent)
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return events, nil
}

// droppedStreams ends the first auth event stream at once, then subscribes with next.
type droppedStreams struct {
	mu     sync.Mutex
	tokens []string
	next   func(ctx context.Context) (<-chan core.AuthEvent, error)
}

func (d *droppedStreams) events(ctx context.Context, token string) (<-chan core.AuthEvent, error) {
	d.mu.Lock()
	d.tokens = append(d.tokens, token)
	n := len(d.tokens)
	d.mu.Unlock()

	if n == 1 {
		events := make(chan core.AuthEvent)
		close(events)
		return events, nil
	}
	return d.next(ctx)
}

func (d *droppedStreams) subscriptions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}

func TestManager_eventStreamEnds(t *testing.T) {
	signIn := func(context.Context, string) (client.SignInResult, error) {
		return client.SignInResult{Token: "ada-token", User: confirmedUser("ada")}, nil
	}

	t.Run("resubscribes", func(t *testing.T) {
		streams := &droppedStreams{next: func(ctx context.Context) (<-chan core.AuthEvent, error) {
			events := make(chan core.AuthEvent, 1)
			events <- core.NewAuthEvent(core.EventPasswordRecovery, "ada")
			go func() {
				<-ctx.Done()
				close(events)
			}()
			return events, nil
		}}
		m := newManager(t, &fakeAPI{signIn: signIn, events: streams.events}, session.NewMemoryStorage(), 0)

		st, err := m.SignIn(context.Background(), "ada@tutorhub.test", goodPwd)
		require.NoError(t, err)
		assert.Equal(t, session.StatusAuthenticated, st.Status)

		assert.Eventually(t, func() bool {
			return m.State().Status == session.StatusAnonymous
		}, waitFor, tickEach, "event of the new stream is handled")
		assert.Equal(t, "A password reset was requested. Please sign in again.", m.State().Message)
		assert.Equal(t, []string{"ada-token", "ada-token"}, streams.subscriptions())
	})

	t.Run("revoked while disconnected", func(t *testing.T) {
		streams := &droppedStreams{next: func(context.Context) (<-chan core.AuthEvent, error) {
			return nil, &client.Error{Status: http.StatusUnauthorized, Code: "session_revoked"}
		}}
		store := session.NewMemoryStorage()
		m := newManager(t, &fakeAPI{signIn: signIn, events: streams.events}, store, 0)

		_, err := m.SignIn(context.Background(), "ada@tutorhub.test", goodPwd)
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			return m.State().Status == session.StatusAnonymous
		}, waitFor, tickEach)
		assert.Equal(t, "You have been signed out. Please sign in again.", m.State().Message)
		_, ok, err := store.Get("token")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestManager_supersededSignIn(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		signIn: func(ctx context.Context, email string) (client.SignInResult, error) {
			id := email[:len(email)-len("@tutorhub.test")]
			if id == "slow" {
				<-release // ignores ctx: answers late no matter what
			}
			return client.SignInResult{Token: id + "-token", User: confirmedUser(id)}, nil
		},
	}
	m := newManager(t, api, session.NewMemoryStorage(), 0)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		slowErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowErr = m.SignIn(ctx, "slow@tutorhub.test", goodPwd)
	}()
	assert.Eventually(t, func() bool {
		return m.State().Status == session.StatusAuthenticating
	}, waitFor, tickEach)

	st, err := m.SignIn(ctx, "fast@tutorhub.test", goodPwd)
	require.NoError(t, err)
	assert.Equal(t, "fast", st.User.ID)

	wg.Wait()
	assert.Equal(t, session.ErrSuperseded, slowErr)

	close(release) // the loser's late answer changes nothing
	time.Sleep(5 * tickEach)
	assert.Equal(t, "fast-token", m.State().Token)
	assert.Equal(t, session.StatusAuthenticated, m.State().Status)
}

func TestManager_timeouts(t *testing.T) {
	ctx := context.Background()

	t.Run("sign in", func(t *testing.T) {
		api := &fakeAPI{
			signIn: func(ctx context.Context, _ string) (client.SignInResult, error) {
				<-ctx.Done()
				return client.SignInResult{}, ctx.Err()
			},
		}
		m := newManager(t, api, session.NewMemoryStorage(), 50*time.Millisecond)

		st, err := m.SignIn(ctx, "ada@tutorhub.test", goodPwd)
		var sErr *session.Error
		require.True(t, errors.As(err, &sErr))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Equal(t, session.StatusAnonymous, st.Status)
		assert.Contains(t, st.Message, "too long")
	})

	t.Run("profile", func(t *testing.T) {
		api := &fakeAPI{
			signIn: func(_ context.Context, _ string) (client.SignInResult, error) {
				return client.SignInResult{Token: "token", User: confirmedUser("ada")}, nil
			},
			profile: func(ctx context.Context, _ string) (profile.Profile, error) {
				<-ctx.Done()
				return profile.Profile{}, ctx.Err()
			},
		}
		m := newManager(t, api, session.NewMemoryStorage(), 50*time.Millisecond)

		st, err := m.SignIn(ctx, "ada@tutorhub.test", goodPwd)
		require.NoError(t, err)
		assert.Equal(t, session.StatusNoProfile, st.Status)
		assert.True(t, st.SignedIn())
		assert.Nil(t, st.Profile)
	})
}

func TestManager_Close(t *testing.T) {
	api := &fakeAPI{
		signIn: func(ctx context.Context, _ string) (client.SignInResult, error) {
			<-ctx.Done()
			return client.SignInResult{}, ctx.Err()
		},
	}
	m := newManager(t, api, session.NewMemoryStorage(), time.Minute)

	errs := make(chan error, 1)
	go func() {
		_, err := m.SignIn(context.Background(), "ada@tutorhub.test", goodPwd)
		errs <- err
	}()
	assert.Eventually(t, func() bool {
		return m.State().Status == session.StatusAuthenticating
	}, waitFor, tickEach)

	m.Close()
	assert.Equal(t, session.ErrClosed, <-errs)
	_, err := m.Init(context.Background())
	assert.Equal(t, session.ErrClosed, err)
}
