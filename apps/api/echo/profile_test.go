package echoapi

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	"github.com/trezcool/tutorhub/tests"
)

func Test_profileApi(t *testing.T) {
	ts := setup(t)

	tutor := testutil.CreateUser(t, ts.UserRepo, "tutor@tutorhub.test", "", user.RoleTutor)
	student := testutil.CreateStudent(t, ts.App, "student@tutorhub.test")
	tutorToken := ts.getToken(t, tutor)
	studentToken := ts.getToken(t, student)

	ts.runAll(t, []httpTest{
		{
			name: "no profile yet", path: "/v1/profiles/me", token: tutorToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: profile.ErrNotFound.Error(), Code: "profile_not_found"}),
		},
		{name: "create", method: http.MethodPost, path: "/v1/profiles", token: tutorToken, wantCode: http.StatusCreated},
		{name: "already created", method: http.MethodPost, path: "/v1/profiles", token: tutorToken, wantCode: http.StatusOK},
		{name: "other profile", path: "/v1/profiles/" + tutor.ID, token: studentToken, wantCode: http.StatusOK},
		{name: "unknown profile", path: "/v1/profiles/nope", token: studentToken, wantCode: http.StatusNotFound},
	})

	rec := ts.run(t, httpTest{path: "/v1/profiles/me", token: tutorToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var p profile.Profile
	decode(t, rec, &p)
	assert.Equal(t, profile.StatusPending, p.ApprovalStatus)

	rec = ts.run(t, httpTest{method: http.MethodPut, path: "/v1/profiles/me", token: tutorToken, body: []byte(`{"first_name":" Grace ","bio":"Compilers"}`)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &p)
	assert.Equal(t, "Grace", p.FirstName)
	assert.Equal(t, "Compilers", p.Bio)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 300, 200))))
	rec = ts.serve(newUploadRequest(t, http.MethodPut, "/v1/profiles/me/avatar", studentToken, "avatar", "me.png", buf.Bytes()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &p)
	assert.Equal(t, "avatars/"+student.ID+".jpg", p.AvatarKey)
	assert.NotEmpty(t, p.AvatarURL)

	rec = ts.serve(newUploadRequest(t, http.MethodPut, "/v1/profiles/me/avatar", studentToken, "avatar", "me.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.serve(newUploadRequest(t, http.MethodPut, "/v1/profiles/me/avatar", studentToken, "picture", "me.png", buf.Bytes()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
