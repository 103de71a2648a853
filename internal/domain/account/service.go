package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
	"github.com/medora/medora/internal/platform/db"
	"github.com/medora/medora/internal/platform/validate"
)

// WriteChecker runs fn inside a transaction that is always rolled back.
type WriteChecker interface {
	RollbackOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	users   UserRepository
	tx      db.TxRunner
	hasher  *auth.Hasher
	tokens  *auth.TokenService
	checker WriteChecker

	allowPrivilegedSignup bool
}

func NewService(users UserRepository, tx db.TxRunner, hasher *auth.Hasher, tokens *auth.TokenService) *Service {
	return &Service{users: users, tx: tx, hasher: hasher, tokens: tokens}
}

// SetAllowPrivilegedSignup lets self-registration pick the doctor or admin role.
func (s *Service) SetAllowPrivilegedSignup(allow bool) {
	s.allowPrivilegedSignup = allow
}

// SetWriteChecker enables the write check in Diagnostics.
func (s *Service) SetWriteChecker(p WriteChecker) {
	s.checker = p
}

var registerRequired = []string{"username", "email", "password", "first_name", "last_name"}

// userMaxLengths mirrors the VARCHAR sizes of the users table.
var userMaxLengths = map[string]int{
	"username":   80,
	"email":      120,
	"first_name": 50,
	"last_name":  50,
	"phone":      20,
}

func checkLength(field, value string) error {
	if max := userMaxLengths[field]; validate.TooLong(value, max) {
		return apierr.Validation(validate.MaxLength(field, max))
	}
	return nil
}

func validateRegistration(in *RegisterInput) error {
	values := map[string]string{
		"username":   in.Username,
		"email":      in.Email,
		"password":   in.Password,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
	}
	for _, field := range registerRequired {
		if validate.Blank(values[field]) {
			return apierr.Validation(validate.Required(field))
		}
	}
	for _, field := range []string{"username", "email", "first_name", "last_name"} {
		if err := checkLength(field, values[field]); err != nil {
			return err
		}
	}
	if !validate.Email(in.Email) {
		return apierr.Validation("Invalid email format")
	}
	if msg := auth.CheckPasswordStrength(in.Password); msg != "" {
		return apierr.Validation(msg)
	}
	if in.Phone != nil {
		if err := checkLength("phone", *in.Phone); err != nil {
			return err
		}
		if !validate.Phone(*in.Phone) {
			return apierr.Validation("Invalid phone number format")
		}
	}
	if in.Role == "" {
		in.Role = string(auth.RoleUser)
	}
	if !auth.Role(in.Role).Valid() {
		return apierr.Validation("Invalid role")
	}
	return nil
}

// Register validates the input, creates the account and issues a token pair.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, auth.TokenPair, error) {
	in.normalize()
	if err := validateRegistration(&in); err != nil {
		return nil, auth.TokenPair{}, err
	}
	if auth.Role(in.Role).Privileged() && !s.allowPrivilegedSignup {
		return nil, auth.TokenPair{}, apierr.Forbidden("Privileged roles cannot be self-assigned")
	}

	var user *User
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.create(ctx, in)
		return err
	})
	if err != nil {
		return nil, auth.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, auth.TokenPair{}, apierr.Internal(err)
	}
	return user, pair, nil
}

func (s *Service) create(ctx context.Context, in RegisterInput) (*User, error) {
	taken, err := s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apierr.Conflict("Username already exists")
	}
	taken, err = s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apierr.Conflict("Email already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apierr.Validation("Password must be at most 72 bytes long")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	user := &User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         auth.Role(in.Role),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and issues a token pair. Legacy SHA-256 hashes
// are replaced with bcrypt in the same transaction.
func (s *Service) Login(ctx context.Context, in LoginInput) (*User, auth.TokenPair, error) {
	login := in.login()
	if login == "" || in.Password == "" {
		return nil, auth.TokenPair{}, apierr.Validation("Username and password are required")
	}

	var user *User
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByLogin(ctx, login)
		if apierr.Is(err, apierr.KindNotFound) {
			return apierr.Unauthorized("Invalid credentials")
		}
		if err != nil {
			return err
		}
		if !s.hasher.Check(u.PasswordHash, in.Password) {
			return apierr.Unauthorized("Invalid credentials")
		}
		if !u.IsActive {
			return apierr.Unauthorized("Account is deactivated")
		}
		if s.hasher.NeedsRehash(u.PasswordHash) {
			hash, err := s.hasher.Hash(in.Password)
			if err != nil {
				return apierr.Internal(err)
			}
			if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
				return err
			}
			u.PasswordHash = hash
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, auth.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, auth.TokenPair{}, apierr.Internal(err)
	}
	return user, pair, nil
}

// Refresh issues a new access token for an actor authenticated by a refresh
// token.
func (s *Service) Refresh(actor *auth.Actor) (string, error) {
	token, err := s.tokens.Issue(actor.ID, auth.AccessToken)
	if err != nil {
		return "", apierr.Internal(err)
	}
	return token, nil
}

// Logout revokes the presented access token and, when given, the refresh
// token belonging to the same user. An unusable refresh token is ignored.
func (s *Service) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.Revoke(ctx, access); err != nil {
			return apierr.Internal(err)
		}
		if refreshToken == "" {
			return nil
		}
		claims, err := s.tokens.Verify(ctx, refreshToken, auth.RefreshToken)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrTokenInvalid) || errors.Is(err, auth.ErrTokenMissing) {
				return nil
			}
			return apierr.Internal(err)
		}
		if claims.Subject != access.Subject {
			return nil
		}
		if err := s.tokens.Revoke(ctx, claims); err != nil {
			return apierr.Internal(err)
		}
		return nil
	})
}

// ResolveActor loads the current role and active flag for a token subject.
func (s *Service) ResolveActor(ctx context.Context, id uuid.UUID) (*auth.Actor, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.ToActor(), nil
}

func (s *Service) Profile(ctx context.Context, actor *auth.Actor) (*User, error) {
	return s.users.GetByID(ctx, actor.ID)
}

func applyNames(u *User, first, last, phone *string) error {
	if first != nil {
		if validate.Blank(*first) {
			return apierr.Validation(validate.Required("first_name"))
		}
		if err := checkLength("first_name", *first); err != nil {
			return err
		}
		u.FirstName = strings.TrimSpace(*first)
	}
	if last != nil {
		if validate.Blank(*last) {
			return apierr.Validation(validate.Required("last_name"))
		}
		if err := checkLength("last_name", *last); err != nil {
			return err
		}
		u.LastName = strings.TrimSpace(*last)
	}
	if phone != nil {
		p := strings.TrimSpace(*phone)
		if p == "" {
			u.Phone = nil
		} else {
			if err := checkLength("phone", p); err != nil {
				return err
			}
			if !validate.Phone(p) {
				return apierr.Validation("Invalid phone number format")
			}
			u.Phone = &p
		}
	}
	return nil
}

// UpdateProfile applies the actor's own changes, including an optional
// password change guarded by the current password.
func (s *Service) UpdateProfile(ctx context.Context, actor *auth.Actor, patch ProfilePatch) (*User, error) {
	if patch.Empty() {
		return nil, apierr.Validation("No data provided")
	}

	var user *User
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if err := applyNames(u, patch.FirstName, patch.LastName, patch.Phone); err != nil {
			return err
		}

		if patch.NewPassword != nil {
			if patch.CurrentPassword == nil || !s.hasher.Check(u.PasswordHash, *patch.CurrentPassword) {
				return apierr.Validation("Current password is incorrect")
			}
			if msg := auth.CheckPasswordStrength(*patch.NewPassword); msg != "" {
				return apierr.Validation(msg)
			}
			hash, err := s.hasher.Hash(*patch.NewPassword)
			if errors.Is(err, auth.ErrPasswordTooLong) {
				return apierr.Validation("Password must be at most 72 bytes long")
			}
			if err != nil {
				return apierr.Internal(err)
			}
			if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
				return err
			}
			u.PasswordHash = hash
		}

		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*UserSummary, int, error) {
	users, total, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if users == nil {
		users = []*UserSummary{}
	}
	return users, total, nil
}

// UpdateUser applies an admin's changes to any account. Admins cannot
// deactivate themselves.
func (s *Service) UpdateUser(ctx context.Context, actor *auth.Actor, id uuid.UUID, patch UserPatch) (*User, error) {
	if patch.Empty() {
		return nil, apierr.Validation("No data provided")
	}
	if id == actor.ID && patch.IsActive != nil && !*patch.IsActive {
		return nil, apierr.Validation("Cannot delete your own account")
	}

	var user *User
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := applyNames(u, patch.FirstName, patch.LastName, patch.Phone); err != nil {
			return err
		}
		if patch.Role != nil {
			role := auth.Role(strings.TrimSpace(*patch.Role))
			if !role.Valid() {
				return apierr.Validation("Invalid role")
			}
			u.Role = role
		}
		if patch.IsActive != nil {
			u.IsActive = *patch.IsActive
		}
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeactivateUser soft-deletes an account.
func (s *Service) DeactivateUser(ctx context.Context, actor *auth.Actor, id uuid.UUID) error {
	if id == actor.ID {
		return apierr.Validation("Cannot delete your own account")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		u.IsActive = false
		return s.users.Update(ctx, u)
	})
}

// EnsureAdmin creates the admin account, or promotes and reactivates an
// existing account with the same username. The bool reports creation.
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (*User, bool, error) {
	in.normalize()
	in.Role = string(auth.RoleAdmin)
	if err := validateRegistration(&in); err != nil {
		return nil, false, err
	}

	var (
		user    *User
		created bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.users.GetByLogin(ctx, in.Username)
		switch {
		case err == nil && existing.Username == in.Username:
			existing.Role = auth.RoleAdmin
			existing.IsActive = true
			if err := s.users.Update(ctx, existing); err != nil {
				return err
			}
			user = existing
			return nil
		case err != nil && !apierr.Is(err, apierr.KindNotFound):
			return err
		}

		user, err = s.create(ctx, in)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

// Diagnostics reports row counts and, when a write checker is set, whether
// a write round-trips inside a transaction that is then rolled back.
func (s *Service) Diagnostics(ctx context.Context) (*Diagnostics, error) {
	counts, err := s.users.TableCounts(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	report := &Diagnostics{Tables: counts}
	if s.checker == nil {
		report.WriteCheck.Error = "write check not configured"
		return report, nil
	}

	checkErr := s.checker.RollbackOnly(ctx, func(ctx context.Context) error {
		suffix := uuid.NewString()[:8]
		scratch := &User{
			Username:     "diag_" + suffix,
			Email:        "diag_" + suffix + "@diagnostics.invalid",
			PasswordHash: "!",
			FirstName:    "Diagnostics",
			LastName:     "Check",
			Role:         auth.RoleUser,
		}
		if err := s.users.Create(ctx, scratch); err != nil {
			return err
		}
		got, err := s.users.GetByID(ctx, scratch.ID)
		if err != nil {
			return err
		}
		if got.Username != scratch.Username {
			return fmt.Errorf("read back %q, wrote %q", got.Username, scratch.Username)
		}
		return nil
	})
	report.WriteCheck.RolledBack = true
	if checkErr != nil {
		report.WriteCheck.Error = checkErr.Error()
		return report, nil
	}
	report.WriteCheck.OK = true
	return report, nil
}
