package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SchemeValidation(t *testing.T) {
	c := New(5 * time.Second)

	req, err := http.NewRequest("GET", "ftp://example.com/file", nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestClient_RedirectCap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Redirect to self forever
		http.Redirect(w, r, srv.URL, http.StatusFound)
	}))
	defer srv.Close()

	maxRedirects := 3
	c := NewWithOptions(5*time.Second, Options{MaxRedirects: &maxRedirects})

	resp, err := c.Get(srv.URL)
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
}

func TestReadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)

	body, err := ReadBody(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
}
