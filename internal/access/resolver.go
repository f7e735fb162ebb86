package access

import (
	"context"
	"fmt"

	"stall-backend/internal/models"
)

// Identity is the authenticated caller as seen by the services.
type Identity struct {
	UserID      uint
	Role        models.UserRole
	BranchID    *uint
	DisplayName string
}

// AssignmentSource looks up the branches an employee is assigned to.
type AssignmentSource interface {
	AssignedBranchIDs(ctx context.Context, userID uint) ([]uint, error)
}

// Resolver turns an Identity into a Scope. It keeps no state between calls;
// assignments are read fresh every time.
type Resolver struct {
	assignments AssignmentSource
}

func NewResolver(assignments AssignmentSource) *Resolver {
	return &Resolver{assignments: assignments}
}

func (r *Resolver) Resolve(ctx context.Context, id Identity) (Scope, error) {
	switch id.Role {
	case models.RoleSuperAdmin:
		return Unrestricted(), nil

	case models.RoleBranchManager:
		if id.BranchID == nil {
			return NoAccess(), nil
		}
		return Branches(*id.BranchID), nil

	case models.RoleEmployee:
		ids, err := r.assignments.AssignedBranchIDs(ctx, id.UserID)
		if err != nil {
			return NoAccess(), fmt.Errorf("resolve branch assignments for user %d: %w", id.UserID, err)
		}
		return Branches(ids...), nil

	default:
		return NoAccess(), nil
	}
}
