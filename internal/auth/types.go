package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Common errors returned by the authentication subsystem.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingToken     = errors.New("missing bearer token")
	ErrPermissionDenied = errors.New("permission denied")
)

// Permissions understood by the API routes.
const (
	PermissionQuery      = "query:run"
	PermissionTasksWrite = "tasks:write"
	PermissionTasksRead  = "tasks:read"
	PermissionToolsRead  = "tools:read"
	// PermissionAll grants every permission.
	PermissionAll = "*"
)

// Subject captures the caller identified by an API key and is passed to
// request handlers via context.
type Subject struct {
	Name        string
	Permissions []string

	permissionsSet map[string]struct{}
}

// normalise prepares the lookup set for permission checks.
func (s *Subject) normalise() {
	if s == nil || s.permissionsSet != nil {
		return
	}
	s.permissionsSet = make(map[string]struct{}, len(s.Permissions))
	for _, perm := range s.Permissions {
		perm = strings.ToLower(strings.TrimSpace(perm))
		if perm != "" {
			s.permissionsSet[perm] = struct{}{}
		}
	}
}

// HasPermission reports whether the subject holds perm.
func (s *Subject) HasPermission(perm string) bool {
	if s == nil {
		return false
	}
	s.normalise()
	if _, ok := s.permissionsSet[PermissionAll]; ok {
		return true
	}
	_, ok := s.permissionsSet[strings.ToLower(perm)]
	return ok
}

// Authorize ensures the subject holds all required permissions.
func (s *Subject) Authorize(required ...string) error {
	var missing []string
	for _, perm := range required {
		if !s.HasPermission(perm) {
			missing = append(missing, perm)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrPermissionDenied, strings.Join(missing, ","))
	}
	return nil
}

// KeyConfig declares one API key. Key may be omitted in favour of KeyEnv.
type KeyConfig struct {
	Name        string   `mapstructure:"name"`
	Key         string   `mapstructure:"key"`
	KeyEnv      string   `mapstructure:"key_env"`
	Permissions []string `mapstructure:"permissions"`
}

// Config toggles API key authentication.
type Config struct {
	Enabled bool        `mapstructure:"enabled"`
	Keys    []KeyConfig `mapstructure:"keys"`
}

func clonePermissions(perms []string) []string {
	if len(perms) == 0 {
		return []string{PermissionAll}
	}
	return slices.Clone(perms)
}
