package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor is the authenticated caller of a use case.
type Actor struct {
	UserID string
	Role   UserRole
}

// ActorFromClaims converts verified token claims into an Actor.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}

// IsPrivileged reports whether the actor is an admin or super admin.
func (a Actor) IsPrivileged() bool {
	return a.Role.IsPrivileged()
}

// IsSuperAdmin reports whether the actor bypasses evaluator assignment.
func (a Actor) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}
