package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu        sync.Mutex
	endpoints []string
	statuses  []int
}

func (o *recordingObserver) ObserveRequest(_ context.Context, _, endpoint string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endpoints = append(o.endpoints, endpoint)
	o.statuses = append(o.statuses, status)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, observer RequestObserver) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 5 * time.Second, Observer: observer})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New(Options{BaseURL: "api.datahub.io"})
	assert.Error(t, err)
}

func TestFlowManager_UploadEmptySendsNoBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/source/upload", r.URL.Path)
		assert.Empty(t, body)
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.Write([]byte(`{"success":false,"errors":["Received empty contents (make sure your content-type is correct)"]}`))
	}, nil)

	resp, err := NewFlowManager(c, "source").UploadEmpty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, []any{"Received empty contents (make sure your content-type is correct)"}, body["errors"])
}

func TestFlowManager_UploadWithToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "service-token", r.Header.Get(AuthTokenHeader))
		assert.JSONEq(t, `{"meta":{"ownerid":"x"}}`, string(body))
		w.Write([]byte(`{"success":true}`))
	}, nil)

	content := map[string]any{"meta": map[string]any{"ownerid": "x"}}
	resp, err := NewFlowManager(c, "source").Upload(context.Background(), content, "service-token")
	require.NoError(t, err)

	body, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, true, body["success"])
}

func TestFlowManager_UploadWithoutTokenOmitsHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header[http.CanonicalHeaderKey(AuthTokenHeader)]
		assert.False(t, present)
		w.Write([]byte(`{}`))
	}, nil)

	_, err := NewFlowManager(c, "source").Upload(context.Background(), map[string]any{}, "")
	require.NoError(t, err)
}

func TestFlowManager_Revision(t *testing.T) {
	observer := &recordingObserver{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/source/owner-1/basic-csv/latest", r.URL.Path)
		w.Write([]byte(`{"id":"tester/basic-csv/5","state":"SUCCEEDED"}`))
	}, observer)

	resp, err := NewFlowManager(c, "source").Revision(context.Background(), "owner-1", "basic-csv", "latest")
	require.NoError(t, err)
	assert.Equal(t, "tester/basic-csv/5", resp.String("id"))
	assert.Equal(t, []string{"flowmanager.revision"}, observer.endpoints)
	assert.Equal(t, []int{http.StatusOK}, observer.statuses)
}

func TestAuth_QueryParameters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/authorize":
			assert.Equal(t, "a b", r.URL.Query().Get("jwt"))
			assert.Equal(t, "source", r.URL.Query().Get("service"))
			w.Write([]byte(`{"permissions":{"max_dataset_num":2},"token":"svc"}`))
		case "/auth/update":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "tester", r.URL.Query().Get("username"))
			w.Write([]byte(`{"success":false,"error":"Not authenticated"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, nil)

	auth := NewAuth(c, "auth")

	resp, err := auth.Authorize(context.Background(), "a b", "source")
	require.NoError(t, err)
	assert.Equal(t, "svc", resp.String("token"))

	resp, err = auth.UpdateUsername(context.Background(), "invalid", "tester")
	require.NoError(t, err)
	assert.Equal(t, "Not authenticated", resp.String("error"))
}

func TestResponse_NonJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found"))
	}, nil)

	resp, err := NewAuth(c, "auth").PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", string(resp.Raw))

	_, err = resp.JSON()
	assert.True(t, errors.Is(err, ErrNotJSON))
	assert.Equal(t, "", resp.String("error"))
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	observer := &recordingObserver{}
	c, err := New(Options{BaseURL: srv.URL, Timeout: time.Second, Observer: observer})
	require.NoError(t, err)

	_, err = NewAuth(c, "auth").Check(context.Background(), "jwt")
	assert.Error(t, err)
	assert.Equal(t, []int{0}, observer.statuses)
}
