package account

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medora/medora/internal/platform/auth"
)

// User maps to the users table. PasswordHash never leaves the service.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        *string   `json:"phone"`
	Role         auth.Role `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) ToActor() *auth.Actor {
	return &auth.Actor{ID: u.ID, Username: u.Username, Role: u.Role, Active: u.IsActive}
}

// UserSummary is a row of the admin user listing.
type UserSummary struct {
	User
	TotalPatients int `json:"total_patients"`
}

type RegisterInput struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     *string `json:"phone"`
	Role      string  `json:"role"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Role = strings.TrimSpace(in.Role)
	if in.Phone != nil {
		p := strings.TrimSpace(*in.Phone)
		if p == "" {
			in.Phone = nil
		} else {
			in.Phone = &p
		}
	}
}

// LoginInput accepts either username_or_email or the older username key.
type LoginInput struct {
	UsernameOrEmail string `json:"username_or_email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
}

func (in LoginInput) login() string {
	if s := strings.TrimSpace(in.UsernameOrEmail); s != "" {
		return s
	}
	return strings.TrimSpace(in.Username)
}

// ProfilePatch lists what a user may change about their own account.
type ProfilePatch struct {
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Phone           *string `json:"phone"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password"`
}

func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.NewPassword == nil
}

// UserPatch lists what an admin may change about any account.
type UserPatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"is_active"`
}

func (p UserPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.Role == nil && p.IsActive == nil
}

// Diagnostics is the admin-only storage report.
type Diagnostics struct {
	Tables     map[string]int   `json:"tables"`
	WriteCheck WriteCheckResult `json:"write_check"`
}

type WriteCheckResult struct {
	OK         bool   `json:"ok"`
	RolledBack bool   `json:"rolled_back"`
	Error      string `json:"error,omitempty"`
}
