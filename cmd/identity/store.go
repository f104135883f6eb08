package identity

import (
	"context"
	"time"
)

// Audit is the audit tuple every pulse entity carries.
// CreatedBy/UpdatedBy reference a user id and may be nil for system writes.
type Audit struct {
	CreatedAt time.Time
	CreatedBy *string
	UpdatedAt time.Time
	UpdatedBy *string
}

// User is pulse's canonical security principal.
type User struct {
	ID       string
	Name     string
	Email    *string
	Active   bool
	Verified bool
	StatusID *string

	Audit Audit
}

// UserAuth pairs a user with its password hash for login verification.
// The hash never leaves this struct.
type UserAuth struct {
	User         User
	PasswordHash string
}

// Machine is a tracked workstation identity.
type Machine struct {
	ID         string
	Name       string // hostname
	UniqueID   string // hardware id
	MAC        *string
	OS         *string
	CPU        *string
	GPU        *string
	RAM        *string
	LastSeenAt *time.Time
	Active     bool

	Audit Audit
}

// Role is an authorization role ("admin", "superadmin", ...).
type Role struct {
	ID   string
	Name string
}

// Discipline is an organizational discipline a role can be scoped to.
type Discipline struct {
	ID   string
	Name string
}

// CreateUserInput describes a user registration.
type CreateUserInput struct {
	Name         string
	Email        *string
	PasswordHash string
	Active       bool
	Verified     bool
	CreatedBy    *string
	Now          time.Time
}

// ResolveMachineInput is the agent handshake payload.
// Machines are matched by (hostname, unique hardware id).
type ResolveMachineInput struct {
	Name     string
	UniqueID string
	MAC      *string
	OS       *string
	CPU      *string
	GPU      *string
	RAM      *string
	Now      time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	GetUserAuthByName(ctx context.Context, name string) (UserAuth, error)

	// ResolveMachine finds a machine by (hostname, unique id), bumping its
	// last-seen timestamp, or creates it when unseen.
	ResolveMachine(ctx context.Context, in ResolveMachineInput) (Machine, error)

	// AssignRoleDiscipline grants a (role, discipline) pair to a user.
	// The (user, role, discipline) triple is unique; duplicates conflict.
	AssignRoleDiscipline(ctx context.Context, userID, roleID, disciplineID string, now time.Time) error

	// RoleNamesForUser returns the distinct role names held by a user,
	// the shape embedded into token data as "roles".
	RoleNamesForUser(ctx context.Context, userID string) ([]string, error)
}
