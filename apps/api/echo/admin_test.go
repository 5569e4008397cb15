package echoapi

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	"github.com/trezcool/tutorhub/tests"
)

func Test_adminApi_users(t *testing.T) {
	ts := setup(t)

	now := time.Now().UTC()
	admin := testutil.CreateUser(t, ts.UserRepo, "admin@tutorhub.test", "", user.RoleAdmin, now.Add(-3*time.Hour))
	ann := testutil.CreateUser(t, ts.UserRepo, "ann@tutorhub.test", "", user.RoleStudent, now.Add(-2*time.Hour))
	ben := testutil.CreateUser(t, ts.UserRepo, "ben@tutorhub.test", "", user.RoleTutor, now.Add(-time.Hour))
	adminToken := ts.getToken(t, admin)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	ts.runAll(t, []httpTest{
		{name: "admin required", path: "/v1/admin/users", token: ts.getToken(t, ann), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "all", path: "/v1/admin/users?ordering=created_at", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, []user.User{admin, ann, ben})},
		{name: "by role", path: "/v1/admin/users?role=tutor", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, []user.User{ben})},
		{name: "search", path: "/v1/admin/users?search=ANN", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, []user.User{ann})},
		{name: "delete self", method: http.MethodDelete, path: "/v1/admin/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "bulk delete self", method: http.MethodDelete, path: "/v1/admin/users?" + url.Values{"id": {ann.ID, admin.ID}}.Encode(), token: adminToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "bulk delete nothing", method: http.MethodDelete, path: "/v1/admin/users", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, DeletedResponse{})},
		{name: "delete unknown", method: http.MethodDelete, path: "/v1/admin/users/nope", token: adminToken, wantCode: http.StatusNotFound},
		{name: "delete", method: http.MethodDelete, path: "/v1/admin/users/" + ben.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "bulk delete", method: http.MethodDelete, path: "/v1/admin/users?" + url.Values{"id": {ann.ID, ben.ID}}.Encode(), token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, DeletedResponse{Deleted: 1}),
		},
	})
}

func Test_adminApi_approvals(t *testing.T) {
	ts := setup(t)

	admin := testutil.CreateUser(t, ts.UserRepo, "admin@tutorhub.test", "", user.RoleAdmin)
	ann := testutil.CreateUser(t, ts.UserRepo, "ann@tutorhub.test", "", user.RoleTutor)
	testutil.CreateProfile(t, ts.ProfRepo, ann, profile.StatusPending, "Ann", "Tutor")
	ben := testutil.CreateUser(t, ts.UserRepo, "ben@tutorhub.test", "", user.RoleTutor)
	testutil.CreateProfile(t, ts.ProfRepo, ben, profile.StatusPending, "Ben", "Tutor")
	adminToken := ts.getToken(t, admin)

	rec := ts.run(t, httpTest{path: "/v1/admin/approvals/pending", token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pending []profile.Approval
	decode(t, rec, &pending)
	assert.Len(t, pending, 2)

	rec = ts.run(t, httpTest{method: http.MethodPost, path: "/v1/admin/users/" + ann.ID + "/approve", token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p profile.Profile
	decode(t, rec, &p)
	assert.Equal(t, profile.StatusApproved, p.ApprovalStatus)

	ts.runAll(t, []httpTest{
		{name: "approve twice", method: http.MethodPost, path: "/v1/admin/users/" + ann.ID + "/approve", token: adminToken, wantCode: http.StatusConflict},
		{name: "approve unknown", method: http.MethodPost, path: "/v1/admin/users/nope/approve", token: adminToken, wantCode: http.StatusNotFound},
		{name: "tutor approves", method: http.MethodPost, path: "/v1/admin/users/" + ben.ID + "/approve", token: ts.getToken(t, ann), wantCode: http.StatusForbidden},
		{name: "bad since", path: "/v1/admin/approvals/recent?since=yesterday", token: adminToken, wantCode: http.StatusBadRequest},
	})

	rec = ts.run(t, httpTest{method: http.MethodPost, path: "/v1/admin/users/" + ben.ID + "/reject", token: adminToken, body: []byte(`{"note":"no references"}`)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &p)
	assert.Equal(t, profile.StatusRejected, p.ApprovalStatus)
	assert.Equal(t, "no references", p.ApprovalNote)

	rec = ts.run(t, httpTest{path: "/v1/admin/approvals/recent", token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var recent []profile.Approval
	decode(t, rec, &recent)
	assert.Len(t, recent, 2)

	since := url.QueryEscape(time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
	ts.runAll(t, []httpTest{
		{name: "none since", path: "/v1/admin/approvals/recent?since=" + since, token: adminToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "none pending", path: "/v1/admin/approvals/pending", token: adminToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}
