package domain

import "github.com/google/uuid"

type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
)

// Principal is the authenticated actor behind a request. Every state-machine
// call takes one explicitly; there is no ambient "current user".
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

func (p *Principal) IsLecturer() bool {
	return p != nil && p.Role == RoleLecturer
}
