package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
)

const minPasswordLength = 8

func (s *Service) ListUsers(ctx context.Context) ([]domain.SystemUser, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

func (s *Service) roleExists(ctx context.Context, tx store.Tx, name string) (bool, error) {
	roles, err := tx.ListRoles(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(roles, func(r domain.Role) bool { return r.Name == name }), nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.SystemUser, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.SystemUser{}, err
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.Username == "" {
		return domain.SystemUser{}, validationError("username is required")
	}
	if len(req.Password) < minPasswordLength {
		return domain.SystemUser{}, validationError("password must be at least %d characters", minPasswordLength)
	}
	if req.Role == "" {
		req.Role = domain.RoleCashier
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.SystemUser{}, fmt.Errorf("hash password: %w", err)
	}

	var result domain.SystemUser
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		ok, err := s.roleExists(ctx, tx, req.Role)
		if err != nil {
			return err
		}
		if !ok {
			return validationError("unknown role %q", req.Role)
		}
		created, err := tx.CreateUser(ctx, domain.SystemUser{
			Username: req.Username,
			Name:     defaultString(strings.TrimSpace(req.Name), req.Username),
			Password: string(hash),
			Role:     req.Role,
			Active:   true,
		})
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "user_create", "user", created.Username, "role="+created.Role)
		result = *created
		return nil
	})
	if err != nil {
		return domain.SystemUser{}, err
	}
	result.Password = ""
	return result, nil
}

// SetUserActive enables or disables a login. Admins cannot lock themselves out.
func (s *Service) SetUserActive(ctx context.Context, username string, active bool) (domain.SystemUser, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.SystemUser{}, err
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if !active && username == actor.Username {
		return domain.SystemUser{}, fmt.Errorf("%w: cannot deactivate the current user", store.ErrInvalidState)
	}

	var result domain.SystemUser
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		user, err := tx.GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		user.Active = active
		saved, err := tx.UpdateUser(ctx, *user)
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "user_set_active", "user", saved.Username, fmt.Sprintf("active=%t", active))
		result = *saved
		return nil
	})
	if err != nil {
		return domain.SystemUser{}, err
	}
	result.Password = ""
	return result, nil
}

func (s *Service) ChangePassword(ctx context.Context, username string, password string) error {
	actor, ok := ActorFromContext(ctx)
	username = strings.ToLower(strings.TrimSpace(username))
	if !ok || (actor.Role != domain.RoleAdmin && actor.Username != username) {
		return fmt.Errorf("%w: cannot change another user's password", ErrForbidden)
	}
	if len(password) < minPasswordLength {
		return validationError("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.InTx(ctx, func(tx store.Tx) error {
		user, err := tx.GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		user.Password = string(hash)
		if _, err := tx.UpdateUser(ctx, *user); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "user_password_change", "user", username, "")
		return nil
	})
}

func (s *Service) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *Service) SaveRole(ctx context.Context, role domain.Role) (domain.Role, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Role{}, err
	}
	role.Name = strings.ToLower(strings.TrimSpace(role.Name))
	if role.Name == "" {
		return domain.Role{}, validationError("role name is required")
	}

	var result domain.Role
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		roles, err := tx.ListRoles(ctx)
		if err != nil {
			return err
		}
		for _, existing := range roles {
			if existing.Name == role.Name && existing.ID != role.ID {
				return validationError("role %q already exists", role.Name)
			}
		}
		saved, err := tx.SaveRole(ctx, role)
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "role_save", "role", saved.ID, saved.Name)
		result = *saved
		return nil
	})
	if err != nil {
		return domain.Role{}, err
	}
	return result, nil
}

// Authenticate checks a username/password pair against the stored bcrypt
// hash. Unknown users and wrong passwords are indistinguishable to callers.
// Accounts restored from an old backup may still hold a plain-text password;
// a successful login upgrades it to a bcrypt hash.
func (s *Service) Authenticate(ctx context.Context, username string, password string) (domain.SystemUser, error) {
	if strings.TrimSpace(password) == "" {
		return domain.SystemUser{}, ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SystemUser{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.SystemUser{}, err
	}

	if isPasswordHash(user.Password) {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
			return domain.SystemUser{}, ErrInvalidCredentials
		}
	} else {
		if user.Password == "" || subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
			return domain.SystemUser{}, ErrInvalidCredentials
		}
		if hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err == nil {
			user.Password = string(hash)
			if _, err := s.repo.UpdateUser(ctx, *user); err != nil {
				log.Printf("[service] WARN: failed to upgrade legacy password user=%s: %v", user.Username, err)
			}
		}
	}
	if !user.Active {
		return domain.SystemUser{}, ErrInactiveAccount
	}

	result := *user
	result.Password = ""
	return result, nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
)
