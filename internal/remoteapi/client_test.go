package remoteapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2,
		JitterFraction: 0,
	}
}

func TestPutFileSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)

		var req PutFileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "docs/a.txt", req.Path)

		json.NewEncoder(w).Encode(FileMeta{Path: req.Path, Version: 1})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token", nil, nil, fastRetryConfig(), nil)

	meta, conflict, err := c.PutFile(context.Background(), PutFileRequest{Path: "docs/a.txt", Size: 10})
	require.NoError(t, err)
	assert.Nil(t, conflict)
	require.NotNil(t, meta)
	assert.Equal(t, int64(1), meta.Version)
}

func TestPutFileVersionConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(VersionConflict{CurrentVersion: 5, ContentHash: "abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token", nil, nil, fastRetryConfig(), nil)

	parent := int64(3)
	meta, conflict, err := c.PutFile(context.Background(), PutFileRequest{Path: "a.txt", ParentVersion: &parent})
	require.NoError(t, err)
	assert.Nil(t, meta)
	require.NotNil(t, conflict)
	assert.Equal(t, int64(5), conflict.CurrentVersion)
}

func TestGetFileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such file"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil, nil, fastRetryConfig(), nil)

	_, err := c.GetFile(context.Background(), "missing.txt")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		json.NewEncoder(w).Encode(ChangesPage{Cursor: "c2"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil, nil, fastRetryConfig(), nil)

	page, err := c.GetChanges(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c2", page.Cursor)
	assert.Equal(t, 2, calls)
}

func TestHasChunkTreats404AsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil, nil, fastRetryConfig(), nil)

	ok, err := c.HasChunk(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutAndGetChunkRoundTrip(t *testing.T) {
	stored := map[string][]byte{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := r.URL.Path[len("/chunks/"):]

		switch r.Method {
		case http.MethodPost:
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			stored[hash] = buf
		case http.MethodGet:
			w.Write(stored[hash])
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil, nil, fastRetryConfig(), nil)

	require.NoError(t, c.PutChunk(context.Background(), "h1", []byte("sealed-bytes")))

	got, err := c.GetChunk(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed-bytes"), got)
}
