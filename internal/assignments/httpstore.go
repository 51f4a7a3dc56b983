package assignments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/harborvet/harborvet/internal/authz"
)

// HTTPStore resolves role assignments through an internal HTTP endpoint
// instead of a direct database connection, for deployments where user
// identity lives in a separate service. The endpoint contract is
// GET {base}/users/{userID}/roles?practice_id=N returning
// {"roles": [...], "practice_id": N}.
type HTTPStore struct {
	base   string
	client *http.Client
}

// NewHTTPStore constructs an HTTPStore. A zero timeout defaults to 5s; the
// resolver treats a slow or failed call like any other store outage, so the
// timeout here is the only thing bounding a check's latency on this path.
func NewHTTPStore(base string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPStore{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

type rolesResponse struct {
	Roles      []authz.RoleAssignment `json:"roles"`
	PracticeID *int64                 `json:"practice_id"`
}

// GetActiveAssignments implements authz.AssignmentStore.
func (s *HTTPStore) GetActiveAssignments(ctx context.Context, userID string, practiceID *int64) ([]authz.RoleAssignment, error) {
	endpoint := fmt.Sprintf("%s/users/%s/roles", s.base, url.PathEscape(userID))
	if practiceID != nil {
		endpoint += "?practice_id=" + strconv.FormatInt(*practiceID, 10)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("assignments: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assignments: fetch: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assignments: unexpected status %d", res.StatusCode)
	}
	var body rolesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("assignments: decode: %w", err)
	}

	active := body.Roles[:0]
	for _, a := range body.Roles {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active, nil
}
