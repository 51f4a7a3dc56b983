// Package roles administers practice-scoped custom roles. Its repository is
// the dynamic backing store behind the authorization role catalog.
package roles

import (
	"time"

	"github.com/harborvet/harborvet/internal/authz"
)

// RoleRecord is a stored role with administrative metadata.
type RoleRecord struct {
	ID          int64              `json:"id"`
	PracticeID  *int64             `json:"practice_id,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	IsSystem    bool               `json:"is_system"`
	Permissions []authz.Permission `json:"permissions"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Role converts the record into the authorization domain shape.
func (r RoleRecord) Role() authz.Role {
	return authz.Role{
		ID:            r.ID,
		Name:          r.Name,
		SystemDefined: r.IsSystem,
		PracticeID:    r.PracticeID,
		Permissions:   r.Permissions,
	}
}
