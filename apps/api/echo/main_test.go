package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tutorhub/core/user"
	metricsvc "github.com/trezcool/tutorhub/services/metrics"
	"github.com/trezcool/tutorhub/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testServer struct {
	*testutil.App
	srv     *Server
	metrics *metricsvc.Metrics
}

func setup(t *testing.T) *testServer {
	t.Helper()
	app := testutil.NewApp()
	metrics := metricsvc.New("tutorhub")
	srv := NewServer(&Deps{
		Conf:          app.Conf,
		Logger:        app.Logger,
		Validate:      app.Validate,
		Translator:    app.Translator,
		Metrics:       metrics,
		Events:        app.Events,
		UserSvc:       app.UserSvc,
		ProfileSvc:    app.ProfileSvc,
		ClassSvc:      app.ClassSvc,
		EnrollmentSvc: app.EnrollmentSvc,
		AssignmentSvc: app.AssignmentSvc,
		DashboardSvc:  app.DashboardSvc,
		ContactSvc:    app.ContactSvc,
	})
	return &testServer{App: app, srv: srv, metrics: metrics}
}

type httpErr struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (ts *testServer) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := ts.srv.auth.newToken(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (ts *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req := newAuthRequest(method, tt.path, tt.token, tt.body)
	return ts.serve(req)
}

// runAll runs table tests, checking the body only when wantData is set.
func (ts *testServer) runAll(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.run(t, tt)
			if tt.wantData == nil {
				assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newUploadRequest(t *testing.T, method, path, token, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() failed: %v", err)
	}
	if _, err = io.Copy(part, bytes.NewReader(content)); err != nil {
		t.Fatalf("writing form file failed: %v", err)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("closing multipart writer failed: %v", err)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
