package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"society/internal/activity"
	"society/internal/backend"
	"society/internal/core"
	applog "society/internal/log"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLen = 8

// rolePrecedence orders roles when a user holds several.
var rolePrecedence = map[core.Role]int{
	core.RoleAdmin:    3,
	core.RoleSecurity: 2,
	core.RoleMember:   1,
}

// Authenticator checks credentials against profiles and user_roles.
type Authenticator struct {
	client    backend.Client
	publisher activity.Publisher
	logger    *applog.Logger
	cost      int
}

func NewAuthenticator(client backend.Client, publisher activity.Publisher) *Authenticator {
	return &Authenticator{
		client:    client,
		publisher: publisher,
		logger:    applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentAuth}),
		cost:      bcrypt.DefaultCost,
	}
}

// WithLogger replaces the logger used for non-fatal failures.
func (a *Authenticator) WithLogger(logger *applog.Logger) *Authenticator {
	a.logger = logger
	return a
}

// HashPassword returns the bcrypt hash stored in profiles.password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SignIn returns the user owning email when password matches. Unknown
// emails and wrong passwords yield the same error.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	var p core.ProfileRow
	err := backend.From(a.client, core.TableProfiles).
		Eq("email", email).
		Single().
		One(ctx, &p)
	if backend.IsNoRows(err) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*p.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	role, err := a.roleOf(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	u := &User{ID: p.ID, Email: email, FullName: p.FullName, Role: role}

	if a.publisher != nil {
		e := activity.New(activity.WithActor(ctx, u.ID), activity.ActionSignIn, core.TableProfiles, u.ID, nil)
		if err := a.publisher.Publish(ctx, e); err != nil {
			a.logger.WarnContext(ctx, "Sign-in event not published", applog.FieldUserID, u.ID, applog.FieldError, err)
		}
	}
	return u, nil
}

// CreateUser registers a profile with a hashed password and grants role.
func (a *Authenticator) CreateUser(ctx context.Context, email, fullName, password string, role core.Role) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	if _, ok := rolePrecedence[role]; !ok {
		return nil, core.ErrInvalidRole
	}

	var existing []core.ProfileRow
	if err := backend.From(a.client, core.TableProfiles).Select("id").Eq("email", email).Rows(ctx, &existing); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var p core.ProfileRow
	err = backend.From(a.client, core.TableProfiles).Single().Insert(ctx, []backend.Record{{
		"email":         email,
		"full_name":     fullName,
		"password_hash": string(hash),
	}}, &p)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	err = backend.From(a.client, core.TableUserRoles).Insert(ctx, []backend.Record{{
		"user_id": p.ID,
		"role":    string(role),
	}}, nil)
	if err != nil {
		// Without a role row the profile would block the email forever.
		if derr := backend.From(a.client, core.TableProfiles).Eq("id", p.ID).Delete(ctx); derr != nil {
			a.logger.ErrorContext(ctx, "Orphan profile not removed", applog.FieldUserID, p.ID, applog.FieldError, derr)
		}
		return nil, fmt.Errorf("grant role: %w", err)
	}
	return &User{ID: p.ID, Email: email, FullName: fullName, Role: role}, nil
}

// roleOf returns the strongest role granted to userID, member when none.
func (a *Authenticator) roleOf(ctx context.Context, userID string) (core.Role, error) {
	var rows []core.UserRoleRow
	if err := backend.From(a.client, core.TableUserRoles).Eq("user_id", userID).Rows(ctx, &rows); err != nil {
		return "", fmt.Errorf("load roles: %w", err)
	}
	best := core.RoleMember
	for _, r := range rows {
		if rolePrecedence[r.Role] > rolePrecedence[best] {
			best = r.Role
		}
	}
	return best, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
