package assignments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStoreFetchesAndFiltersActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/42/roles", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("practice_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"roles": [
				{"id": 1, "user_id": "42", "role_id": 10, "is_active": true},
				{"id": 2, "user_id": "42", "role_id": 11, "is_active": false},
				{"id": 3, "user_id": "42", "role_id": 12, "is_active": true}
			],
			"practice_id": 7
		}`))
	}))
	defer srv.Close()

	practiceID := int64(7)
	store := NewHTTPStore(srv.URL, time.Second)
	out, err := store.GetActiveAssignments(context.Background(), "42", &practiceID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.EqualValues(t, 10, out[0].RoleID)
	assert.EqualValues(t, 12, out[1].RoleID)
}

func TestHTTPStoreErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, time.Second)
	_, err := store.GetActiveAssignments(context.Background(), "42", nil)
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestHTTPStoreUnreachable(t *testing.T) {
	store := NewHTTPStore("http://127.0.0.1:0", 100*time.Millisecond)
	_, err := store.GetActiveAssignments(context.Background(), "42", nil)
	assert.Error(t, err)
}
