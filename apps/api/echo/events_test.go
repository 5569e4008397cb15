package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/user"
	"github.com/trezcool/tutorhub/tests"
)

func Test_authApi_streamEvents(t *testing.T) {
	ts := setup(t)

	usr := testutil.CreateUser(t, ts.UserRepo, "ada@tutorhub.test", goodPwd, user.RoleStudent)
	ctx, cancel := context.WithCancel(context.Background())
	req := newAuthRequest(http.MethodGet, "/v1/auth/events", ts.getToken(t, usr), nil).WithContext(ctx)

	done := make(chan struct{})
	var code int
	var body string
	go func() {
		defer close(done)
		rec := ts.serve(req)
		code, body = rec.Code, rec.Body.String()
	}()

	// give the handler time to subscribe
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, ts.Events.Publish(context.Background(), core.NewAuthEvent(core.EventUserUpdated, usr.ID)))
	require.NoError(t, ts.Events.Publish(context.Background(), core.NewAuthEvent(core.EventUserUpdated, "someone-else")))
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end with the request")
	}
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, ": connected")
	assert.Contains(t, body, "event: user_updated\ndata: ")
	assert.Contains(t, body, `"user_id":"`+usr.ID+`"`)
	assert.NotContains(t, body, "someone-else")
}
