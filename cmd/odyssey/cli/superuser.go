package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// SuperuserOptions describe the administrator account to create.
type SuperuserOptions struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// CreateSuperuser inserts an active administrator. The password goes
// through the same validators as self-registration.
func CreateSuperuser(ctx context.Context, repo users.Repository, opts SuperuserOptions) (int64, error) {
	u := users.User{
		Username:    users.NormalizeUsername(opts.Username),
		Email:       users.NormalizeEmail(opts.Email),
		FirstName:   strings.TrimSpace(opts.FirstName),
		LastName:    strings.TrimSpace(opts.LastName),
		Role:        shared.RoleAdmin,
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: true,
		DateJoined:  time.Now().UTC(),
	}
	if u.Email == "" {
		return 0, errors.New("email is required")
	}
	if u.Username == "" {
		u.Username, _, _ = strings.Cut(u.Email, "@")
	}
	if problems := users.ValidatePassword(opts.Password, &u); len(problems) > 0 {
		return 0, fmt.Errorf("password rejected: %s", strings.Join(problems, " "))
	}
	if taken, err := repo.EmailTaken(ctx, u.Email, 0); err != nil {
		return 0, err
	} else if taken {
		return 0, fmt.Errorf("email %s is already registered", u.Email)
	}
	if taken, err := repo.UsernameTaken(ctx, u.Username, 0); err != nil {
		return 0, err
	} else if taken {
		return 0, fmt.Errorf("username %s is already taken", u.Username)
	}
	hash, err := users.HashPassword(opts.Password)
	if err != nil {
		return 0, err
	}
	u.PasswordHash = hash
	return repo.Create(ctx, u)
}
