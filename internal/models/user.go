package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleSuperAdmin    UserRole = "super_admin"
	RoleBranchManager UserRole = "branch_manager"
	RoleEmployee      UserRole = "employee"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleBranchManager, RoleEmployee:
		return true
	}
	return false
}

type User struct {
	ID           uint  `gorm:"primaryKey"`
	BranchID     *uint // home branch of a branch manager
	Branch       *Branch
	FirstName    string   `gorm:"size:100;not null"`
	LastName     string   `gorm:"size:100"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName is what approval and collection records store as the actor.
func (u User) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// UserBranch assigns an employee to a branch. An employee's scope is the set
// of these rows.
type UserBranch struct {
	UserID    uint `gorm:"primaryKey"`
	BranchID  uint `gorm:"primaryKey;index"`
	Branch    Branch
	CreatedAt time.Time
}
