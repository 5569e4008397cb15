package dig_container

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/tutorhub/apps/api/echo"
	"github.com/trezcool/tutorhub/apps/shared"
	"github.com/trezcool/tutorhub/core"
)

func TestNew(t *testing.T) {
	c := New(func() *core.Config {
		conf := core.NewTestConfig()
		conf.Database.Engine = shared.MemoryEngine
		return conf
	})

	err := c.Invoke(func(server *echoapi.Server, repos *shared.Repositories, mail MailCloserParam) {
		assert.Nil(t, repos.SQL)
		assert.NoError(t, mail.Close())

		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Welcome to Tutorhub API!", rec.Body.String())

		rec = httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	require.NoError(t, err)
}
