package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPNotifier_NotifyJobCompleted(t *testing.T) {
	var gotOwner string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotOwner = payload["owner_id"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL)
	require.NoError(t, n.NotifyJobCompleted(context.Background(), "owner-1"))
	assert.Equal(t, "owner-1", gotOwner)
}

func TestHTTPNotifier_SurfacesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL)
	err := n.NotifyJobCompleted(context.Background(), "owner-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
