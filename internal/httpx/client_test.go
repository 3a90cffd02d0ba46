package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silvabox/orchestrate-go/internal/httpx"
)

func fastRetry(max int) httpx.RetryPolicy {
	return httpx.RetryPolicy{
		MaxRetries: max,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestDoReturnsErrorResponsesUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		w.Write([]byte(`{"code":"item_version_mismatch"}`))
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/v0/items/one"})
	require.NoError(t, err, "a completed 4xx exchange is not a transport error")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
}

func TestDoRetriesTransientStatuses(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(fastRetry(3)))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	body, err := httpx.ReadAllAndClose(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int64(3), calls.Load())
}

func TestDoExhaustsRetriesAndReturnsLastResponse(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(fastRetry(2)))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int64(3), calls.Load())
}

func TestDoReplaysBodyOnRetry(t *testing.T) {
	var calls atomic.Int64
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := httpx.ReadAllAndClose(r.Body)
		bodies = append(bodies, string(data))
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(fastRetry(2)))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &httpx.Request{
		Method: http.MethodPut,
		Path:   "/v0/items/one",
		Body:   []byte(`{"n":1}`),
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, []string{`{"n":1}`, `{"n":1}`}, bodies)
}

func TestDoDisableRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(fastRetry(5)))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/", DisableRetry: true})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int64(1), calls.Load())
}

func TestDefaultHeadersAndPerRequestHeadersMerge(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	defaults := http.Header{}
	defaults.Set("Authorization", "Basic abc")
	client, err := httpx.NewClient(srv.URL, httpx.WithHeaders(defaults))
	require.NoError(t, err)

	reqHeader := http.Header{}
	reqHeader.Set("If-Match", `"r1"`)
	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/", Header: reqHeader})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Basic abc", got.Get("Authorization"))
	assert.Equal(t, `"r1"`, got.Get("If-Match"))
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := httpx.NewClient("")
	assert.Error(t, err)
	_, err = httpx.NewClient("://bad")
	assert.Error(t, err)
}
