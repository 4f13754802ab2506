package permissions

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/viper-platform/raps/internal/audit"
	"github.com/viper-platform/raps/internal/platform/httpx"
)

// Namespaced name: dot-separated segments of word characters.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

// TxPort groups the mutations available inside one transaction. It
// doubles as an audit executor so the audit row commits with the
// mutation.
type TxPort interface {
	audit.Execer
	InsertPermission(ctx context.Context, p Permission) (int64, error)
	UpdatePermission(ctx context.Context, p Permission) error
	DeletePermission(ctx context.Context, id int64) error
}

// RepositoryPort defines data access for the registry.
type RepositoryPort interface {
	ListPermissions(ctx context.Context, req ListPermissionsRequest) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	GrantCountForPermission(ctx context.Context, id int64) (int, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxPort) error) error
}

// Service handles permission registry business logic.
type Service struct {
	repo     RepositoryPort
	auditLog *audit.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, auditLog *audit.Logger) *Service {
	return &Service{repo: repo, auditLog: auditLog}
}

// List returns registered permissions, optionally scoped or searched.
func (s *Service) List(ctx context.Context, req ListPermissionsRequest) ([]Permission, error) {
	return s.repo.ListPermissions(ctx, req)
}

// Get fetches one permission.
func (s *Service) Get(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// Create registers a new permission.
func (s *Service) Create(ctx context.Context, req CreatePermissionRequest, actorID int64) (Permission, error) {
	name := strings.TrimSpace(req.Name)
	if !nameRE.MatchString(name) {
		return Permission{}, fmt.Errorf("%w: permission name must be dot-separated segments", httpx.ErrValidation)
	}
	p := Permission{Name: name, Description: strings.TrimSpace(req.Description)}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		id, err := tx.InsertPermission(ctx, p)
		if err != nil {
			return err
		}
		p.ID = id
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionCreate,
			Entity:   "permissions",
			EntityID: strconv.FormatInt(id, 10),
			Detail:   fmt.Sprintf("created permission %s", p.Name),
		})
	})
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

// Update changes name and/or description of a permission. The name of
// a permission referenced by any grant is immutable: scope filtering
// keys off the name, so a rename would silently re-scope every grant
// that carries it.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePermissionRequest, actorID int64) (Permission, error) {
	existing, err := s.repo.GetPermission(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if !nameRE.MatchString(name) {
			return Permission{}, fmt.Errorf("%w: permission name must be dot-separated segments", httpx.ErrValidation)
		}
		if name != existing.Name {
			refs, err := s.repo.GrantCountForPermission(ctx, id)
			if err != nil {
				return Permission{}, err
			}
			if refs > 0 {
				return Permission{}, fmt.Errorf("%w: permission is referenced by %d grant(s) and cannot be renamed", httpx.ErrValidation, refs)
			}
		}
		existing.Name = name
	}
	if req.Description != nil {
		existing.Description = strings.TrimSpace(*req.Description)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.UpdatePermission(ctx, existing); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionUpdate,
			Entity:   "permissions",
			EntityID: strconv.FormatInt(id, 10),
			Detail:   fmt.Sprintf("updated permission %s", existing.Name),
		})
	})
	if err != nil {
		return Permission{}, err
	}
	return existing, nil
}

// Delete removes a permission. Permissions referenced by any role or
// member grant stay immutable and cannot be removed.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	existing, err := s.repo.GetPermission(ctx, id)
	if err != nil {
		return err
	}
	refs, err := s.repo.GrantCountForPermission(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: permission is referenced by %d grant(s)", httpx.ErrValidation, refs)
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.DeletePermission(ctx, id); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionDelete,
			Entity:   "permissions",
			EntityID: strconv.FormatInt(id, 10),
			Detail:   fmt.Sprintf("deleted permission %s", existing.Name),
		})
	})
}
