package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Create(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tickets", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Response{ID: 7, Ref: "T-7"})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "secret")
	resp, err := c.Create(context.Background(), &Request{Subject: "subject", Body: "body"})
	require.NoError(t, err)

	assert.Equal(t, int64(7), resp.ID)
	assert.Equal(t, "T-7", resp.Ref)
	assert.Equal(t, "subject", got.Subject)
	assert.Equal(t, "body", got.Body)
}

func TestAPIClient_Create_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "wrong")
	_, err := c.Create(context.Background(), &Request{Subject: "s"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %v", err)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "bad key", apiErr.Message)
}

func TestMockClient_SequentialIDs(t *testing.T) {
	m := NewMockClient()

	first, err := m.Create(context.Background(), &Request{Subject: "a"})
	require.NoError(t, err)
	second, err := m.Create(context.Background(), &Request{Subject: "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "MOCK-1", first.Ref)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "MOCK-2", second.Ref)

	require.Len(t, m.Created, 2)
	assert.Equal(t, "b", m.Created[1].Subject)
}
