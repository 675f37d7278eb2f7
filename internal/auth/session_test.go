// internal/auth/session_test.go
package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ssobridge/api/schemas"
)

func TestSession_SetCookieLastWriteWins(t *testing.T) {
	s := NewSession(SessionOptions{})
	s.SetCookie("JSESSIONID", "first")
	s.SetCookie("PF", "pf")
	s.SetCookie("JSESSIONID", "second")

	want := []schemas.BrowserCookie{
		{Name: "JSESSIONID", Value: "second"},
		{Name: "PF", Value: "pf"},
	}
	if diff := cmp.Diff(want, s.Cookies()); diff != "" {
		t.Errorf("cookies mismatch (-want +got):\n%s", diff)
	}

	v, ok := s.Cookie("JSESSIONID")
	assert.True(t, ok)
	assert.Equal(t, "second", v)
	_, ok = s.Cookie("missing")
	assert.False(t, ok)
}

func TestSession_HeadersReplace(t *testing.T) {
	s := NewSession(SessionOptions{})
	s.SetHeader("X-Reference-Id", "old")
	s.SetHeader("x-reference-id", "new")

	assert.Equal(t, "new", s.Header("X-Reference-Id"))
	assert.Equal(t, map[string]string{"X-Reference-Id": "new"}, s.Headers())
}

func TestSession_RequestCarriesCookiesAndHeaders(t *testing.T) {
	var gotCookies []*http.Cookie
	var gotHeader, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookies = r.Cookies()
		gotHeader = r.Header.Get("X-Instance-Id")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	s := NewSession(SessionOptions{UserAgent: "ssobridge-test", Timeout: 5 * time.Second})
	s.SetCookie("JSESSIONID", "abc")
	s.SetHeader("X-Instance-Id", "inst-1")

	req, err := s.Request(context.Background())
	require.NoError(t, err)
	resp, err := req.Get(server.URL + "/api/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	require.Len(t, gotCookies, 1)
	assert.Equal(t, "JSESSIONID", gotCookies[0].Name)
	assert.Equal(t, "abc", gotCookies[0].Value)
	assert.Equal(t, "inst-1", gotHeader)
	assert.Equal(t, "ssobridge-test", gotUA)
}

func TestSession_DoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		t.Errorf("redirect was followed to %s", r.URL.Path)
	}))
	t.Cleanup(server.Close)

	s := NewSession(SessionOptions{})
	req, err := s.Request(context.Background())
	require.NoError(t, err)
	resp, err := req.Get(server.URL + "/start")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
}

func TestSession_RateLimitHonorsContext(t *testing.T) {
	s := NewSession(SessionOptions{RateLimit: 0.001})

	_, err := s.Request(context.Background())
	require.NoError(t, err, "the first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.Request(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit error")
}

func TestSession_SnapshotRestore(t *testing.T) {
	s := NewSession(SessionOptions{})
	s.SetCookie("JSESSIONID", "abc")
	s.SetCookie("PF", "xyz")
	s.SetHeader("X-Reference-Id", "R1")

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"cookies":[{"name":"JSESSIONID","value":"abc"},{"name":"PF","value":"xyz"}],"headers":{"X-Reference-Id":"R1"}}`,
		string(data))

	restored, err := RestoreSession(data, SessionOptions{})
	require.NoError(t, err)
	if diff := cmp.Diff(s.Snapshot(), restored.Snapshot()); diff != "" {
		t.Errorf("restored session mismatch (-want +got):\n%s", diff)
	}

	_, err = RestoreSession([]byte("not json"), SessionOptions{})
	assert.Error(t, err)
}
