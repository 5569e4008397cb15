// Package client is a Go SDK for the tutorhub HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/dashboard"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client of the API served at baseURL (e.g. http://localhost:8000).
// A nil httpClient uses a client with a 30s timeout; event streams need one without timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(baseURL, "baseURL"),
	).Check(); err != nil {
		return nil, err
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid base URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/") + "/v1", http: httpClient}, nil
}

type (
	SignInResult struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	tokenResponse struct {
		Token string `json:"token"`
	}

	emailRequest struct {
		Email string `json:"email"`
	}

	signInRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

func (c *Client) newRequest(ctx context.Context, method, path, token string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request")
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends the request and decodes a 2xx body into dest (when not nil). Other statuses are *Error.
func (c *Client) do(ctx context.Context, method, path, token string, body, dest interface{}) error {
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res)
	}
	if dest == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(res.Body).Decode(dest); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, path)
	}
	return nil
}

// Auth

// SignUp registers a student or tutor. The account must confirm its email before signing in.
func (c *Client) SignUp(ctx context.Context, email, pwd, role string) (user.User, error) {
	var usr user.User
	nu := user.NewUser{Email: email, Password: pwd, PasswordConfirm: pwd, Role: role}
	err := c.do(ctx, http.MethodPost, "/auth/signup", "", nu, &usr)
	return usr, err
}

func (c *Client) SignIn(ctx context.Context, email, pwd string) (SignInResult, error) {
	var res SignInResult
	err := c.do(ctx, http.MethodPost, "/auth/signin", "", signInRequest{Email: email, Password: pwd}, &res)
	return res, err
}

func (c *Client) RefreshToken(ctx context.Context, token string) (string, error) {
	var res tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/token-refresh", token, nil, &res)
	return res.Token, err
}

// SignOut revokes every token of the account.
func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/signout", token, nil, nil)
}

func (c *Client) CurrentUser(ctx context.Context, token string) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodGet, "/auth/user", token, nil, &usr)
	return usr, err
}

func (c *Client) UpdateCredentials(ctx context.Context, token string, data user.UpdateCredentials) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodPut, "/auth/user", token, data, &usr)
	return usr, err
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", "", emailRequest{Email: email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, data user.ResetUserPassword) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset-confirm", "", data, nil)
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/resend-verification", "", emailRequest{Email: email}, nil)
}

func (c *Client) ConfirmEmail(ctx context.Context, uid, token string) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodPost, "/auth/confirm-email", "", user.ConfirmUserEmail{UID: uid, Token: token}, &usr)
	return usr, err
}

// Profiles

func (c *Client) Profile(ctx context.Context, token, userID string) (profile.Profile, error) {
	var p profile.Profile
	err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID), token, nil, &p)
	return p, err
}

// EnsureProfile creates the caller's profile if it does not exist yet.
func (c *Client) EnsureProfile(ctx context.Context, token string) (profile.Profile, error) {
	var p profile.Profile
	err := c.do(ctx, http.MethodPost, "/profiles", token, nil, &p)
	return p, err
}

func (c *Client) UpdateProfile(ctx context.Context, token string, data profile.UpdateProfile) (profile.Profile, error) {
	var p profile.Profile
	err := c.do(ctx, http.MethodPut, "/profiles/me", token, data, &p)
	return p, err
}

// Classes

func (c *Client) Classes(ctx context.Context, token, search string) ([]class.Class, error) {
	path := "/classes?ordering=title"
	if search != "" {
		path += "&search=" + url.QueryEscape(search)
	}
	var classes []class.Class
	err := c.do(ctx, http.MethodGet, path, token, nil, &classes)
	return classes, err
}

func (c *Client) ClassDetail(ctx context.Context, token, classID string) (dashboard.ClassDetail, error) {
	var detail dashboard.ClassDetail
	err := c.do(ctx, http.MethodGet, "/classes/"+url.PathEscape(classID), token, nil, &detail)
	return detail, err
}

func (c *Client) Enroll(ctx context.Context, token, classID string) (enrollment.Result, error) {
	var res enrollment.Result
	err := c.do(ctx, http.MethodPost, "/classes/"+url.PathEscape(classID)+"/enroll", token, nil, &res)
	return res, err
}

func (c *Client) Drop(ctx context.Context, token, classID string) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := c.do(ctx, http.MethodPost, "/classes/"+url.PathEscape(classID)+"/drop", token, nil, &e)
	return e, err
}

// Enrollments lists the caller's enrollments; an empty status lists them all.
func (c *Client) Enrollments(ctx context.Context, token, status string) ([]enrollment.Enrollment, error) {
	path := "/enrollments"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var enrollments []enrollment.Enrollment
	err := c.do(ctx, http.MethodGet, path, token, nil, &enrollments)
	return enrollments, err
}

// Assignments

func (c *Client) Submit(ctx context.Context, token, assignmentID, content string) (assignment.Submission, error) {
	var sub assignment.Submission
	path := "/assignments/" + url.PathEscape(assignmentID) + "/submissions"
	err := c.do(ctx, http.MethodPost, path, token, assignment.NewSubmission{Content: content}, &sub)
	return sub, err
}

// Dashboards

func (c *Client) StudentDashboard(ctx context.Context, token string) (dashboard.StudentDashboard, error) {
	var dash dashboard.StudentDashboard
	err := c.do(ctx, http.MethodGet, "/dashboard/student", token, nil, &dash)
	return dash, err
}

func (c *Client) TutorDashboard(ctx context.Context, token string) (dashboard.TutorDashboard, error) {
	var dash dashboard.TutorDashboard
	err := c.do(ctx, http.MethodGet, "/dashboard/tutor", token, nil, &dash)
	return dash, err
}
