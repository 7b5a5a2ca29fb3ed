package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stepflow/pkg/log"
)

func TestHTTPSession_Lifecycle(t *testing.T) {
	s := NewHTTPSession(0, nil)

	_, err := s.Client()
	require.ErrorIs(t, err, ErrNotInitialized)
	require.NoError(t, s.Cleanup(t.Context()))

	initialized, err := s.Init(t.Context())
	require.NoError(t, err)
	assert.Same(t, s, initialized)

	client, err := s.Client()
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, client.Timeout)
	assert.NotNil(t, client.Jar)

	require.NoError(t, s.Cleanup(t.Context()))
}

func TestHTTPSession_KeepsCookiesAcrossRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})

			return
		}

		cookie, err := r.Cookie("sid")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		_, _ = w.Write([]byte(cookie.Value))
	}))
	defer server.Close()

	factory := HTTPFactory(time.Second)

	sess, err := factory(t.Context(), log.Nop())
	require.NoError(t, err)

	sess, err = sess.Init(t.Context())
	require.NoError(t, err)

	client, err := sess.(HTTPClient).Client()
	require.NoError(t, err)

	resp, err := client.Get(server.URL + "/login")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	resp, err = client.Get(server.URL + "/account")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
