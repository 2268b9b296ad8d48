package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleEvaluator  UserRole = "EVALUATOR"
	RoleCompetitor UserRole = "COMPETITOR"
)

// IsPrivileged reports whether the role may manage any training regardless of status.
func (r UserRole) IsPrivileged() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// CanEvaluate reports whether the role may be assigned as evaluator.
func (r UserRole) CanEvaluate() bool {
	return r == RoleEvaluator || r.IsPrivileged()
}

// User is a person known to the service. Credentials live with the identity provider.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalises page values the same way repositories do.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
