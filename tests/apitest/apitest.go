// Package apitest serves the whole API over HTTP, in memory, for client-side tests.
package apitest

import (
	"net/http/httptest"
	"testing"

	echoapi "github.com/trezcool/tutorhub/apps/api/echo"
	"github.com/trezcool/tutorhub/tests"
)

// NewServer starts the API on a local port. It is closed when the test ends.
func NewServer(t *testing.T) (*httptest.Server, *testutil.App) {
	t.Helper()
	app := testutil.NewApp()
	api := echoapi.NewServer(&echoapi.Deps{
		Conf:          app.Conf,
		Logger:        app.Logger,
		Validate:      app.Validate,
		Translator:    app.Translator,
		Events:        app.Events,
		UserSvc:       app.UserSvc,
		ProfileSvc:    app.ProfileSvc,
		ClassSvc:      app.ClassSvc,
		EnrollmentSvc: app.EnrollmentSvc,
		AssignmentSvc: app.AssignmentSvc,
		DashboardSvc:  app.DashboardSvc,
		ContactSvc:    app.ContactSvc,
	})
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return srv, app
}
