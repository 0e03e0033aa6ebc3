package domain

import "time"

// Role is a coarse authorization tag attached to every user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleNormal Role = "normal"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleNormal
}

// User models a stored credential record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"-"`
}

// Identity is the public view of a user. It is what clients see, what tokens
// carry and what the auth middleware attaches to a request.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Identity strips the password hash and timestamps from u.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Role: u.Role}
}
