package zendesk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Credentials{Subdomain: "hairforhire", Email: "ops@example.com", APIToken: "tok"},
		WithBaseURL(srv.URL), WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return c
}

func searchHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/search.json", r.URL.Path)
		require.Equal(t, `type:ticket external_id:"conv-1"`, r.URL.Query().Get("query"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "ops@example.com/token", user)
		require.Equal(t, "tok", pass)
		_, _ = w.Write([]byte(body))
	}
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Credentials{Email: "a", APIToken: "b"})
	require.ErrorContains(t, err, "subdomain")
	_, err = New(Credentials{Subdomain: "x", Email: "a"})
	require.ErrorContains(t, err, "api token")

	c, err := New(Credentials{Subdomain: "hairforhire", Email: "a", APIToken: "b"})
	require.NoError(t, err)
	require.Equal(t, "https://hairforhire.zendesk.com", c.baseURL)
}

func TestTags_HappyPath(t *testing.T) {
	srv := httptest.NewServer(searchHandler(t, `{"results":[{"id":42,"result_type":"ticket","tags":["vip","live_agent_requested"]}],"count":1}`))
	defer srv.Close()

	tags, err := newTestClient(t, srv).Tags(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, []string{"vip", "live_agent_requested"}, tags)
}

func TestTags_NoTicket(t *testing.T) {
	srv := httptest.NewServer(searchHandler(t, `{"results":[],"count":0}`))
	defer srv.Close()

	tags, err := newTestClient(t, srv).Tags(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestTags_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Couldn't authenticate you"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Tags(context.Background(), "conv-1")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.HTTPStatusCode())

	_, err = newTestClient(t, srv).Tags(context.Background(), " ")
	require.ErrorContains(t, err, "conversation id")
}

func TestAddTag_HappyPath(t *testing.T) {
	var gotTags []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/search.json":
			_, _ = w.Write([]byte(`{"results":[{"id":42,"result_type":"ticket","tags":["vip"]}]}`))
		case "/api/v2/tickets/42/tags.json":
			require.Equal(t, http.MethodPut, r.Method)
			var req tagsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gotTags = req.Tags
			_, _ = w.Write([]byte(`{"tags":["vip","live_agent_requested"]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(t, srv).AddTag(context.Background(), "conv-1", "live_agent_requested"))
	require.Equal(t, []string{"live_agent_requested"}, gotTags)
}

func TestAddTag_NoTicket(t *testing.T) {
	srv := httptest.NewServer(searchHandler(t, `{"results":[]}`))
	defer srv.Close()

	err := newTestClient(t, srv).AddTag(context.Background(), "conv-1", "live_agent_requested")
	require.ErrorIs(t, err, ErrTicketNotFound)
}

func TestAddTag_EmptyTag(t *testing.T) {
	c, err := New(Credentials{Subdomain: "x", Email: "a", APIToken: "b"})
	require.NoError(t, err)
	require.ErrorContains(t, c.AddTag(context.Background(), "conv-1", " "), "tag")
}
