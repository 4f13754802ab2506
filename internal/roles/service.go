package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/viper-platform/raps/internal/audit"
	"github.com/viper-platform/raps/internal/platform/httpx"
)

// TxPort groups the mutations available inside one transaction.
type TxPort interface {
	audit.Execer
	InsertRole(ctx context.Context, role Role) (int64, error)
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id int64) error
	InsertGrant(ctx context.Context, roleID, permissionID int64, access bool) error
	UpdateGrant(ctx context.Context, roleID, permissionID int64, access bool) error
	DeleteGrant(ctx context.Context, roleID, permissionID int64) error
}

// RepositoryPort defines data access for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context, application string) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	ListGrants(ctx context.Context, roleID int64) ([]Grant, error)
	ListMembers(ctx context.Context, roleID int64) ([]Member, error)
	MemberIDsForRole(ctx context.Context, roleID int64) ([]int64, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxPort) error) error
}

// CacheInvalidator drops cached resolutions for a member.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, memberID int64) error
}

// Service handles role business logic.
type Service struct {
	repo     RepositoryPort
	auditLog *audit.Logger
	cache    CacheInvalidator
	logger   *slog.Logger
}

// NewService builds a Service instance. cache may be nil.
func NewService(repo RepositoryPort, auditLog *audit.Logger, cache CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditLog: auditLog, cache: cache, logger: logger}
}

// List returns roles, optionally restricted to one application scope.
func (s *Service) List(ctx context.Context, application string) ([]Role, error) {
	return s.repo.ListRoles(ctx, application)
}

// Get fetches a role by ID.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// Grants lists the permission grants of a role.
func (s *Service) Grants(ctx context.Context, roleID int64) ([]Grant, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.ListGrants(ctx, roleID)
}

// Members lists the members of a role.
func (s *Service) Members(ctx context.Context, roleID int64) ([]Member, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, roleID)
}

// Create registers a new role.
func (s *Service) Create(ctx context.Context, req CreateRoleRequest, actorID int64) (Role, error) {
	role := Role{
		Name:        strings.TrimSpace(req.Name),
		Application: strings.TrimSpace(req.Application),
		Description: strings.TrimSpace(req.Description),
	}
	if role.Name == "" || role.Application == "" {
		return Role{}, fmt.Errorf("%w: role name and application required", httpx.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		id, err := tx.InsertRole(ctx, role)
		if err != nil {
			return err
		}
		role.ID = id
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionCreate,
			Entity:   "roles",
			EntityID: strconv.FormatInt(id, 10),
			Detail:   fmt.Sprintf("created role %s in %s", role.Name, role.Application),
		})
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// Update changes name and/or description of a role.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRoleRequest, actorID int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
		}
		role.Name = name
	}
	if req.Description != nil {
		role.Description = strings.TrimSpace(*req.Description)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.UpdateRole(ctx, role); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionUpdate,
			Entity:   "roles",
			EntityID: strconv.FormatInt(id, 10),
			Detail:   fmt.Sprintf("updated role %s", role.Name),
		})
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// Delete removes a role and its grants and memberships.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	affected, err := s.repo.MemberIDsForRole(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.DeleteRole(ctx, id); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionDelete,
			Entity:   "roles",
			EntityID: strconv.FormatInt(id, 10),
			Detail:   fmt.Sprintf("deleted role %s", role.Name),
		})
	})
	if err != nil {
		return err
	}
	s.invalidateMembers(ctx, affected)
	return nil
}

// Grant attaches a permission to a role. Duplicate (role, permission)
// pairs are rejected; an existing grant must be updated or revoked
// instead.
func (s *Service) Grant(ctx context.Context, roleID int64, req GrantRequest, actorID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	access := req.Access != nil && *req.Access

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.InsertGrant(ctx, roleID, req.PermissionID, access); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionCreate,
			Entity:   "role_permissions",
			EntityID: grantKey(roleID, req.PermissionID),
			Detail:   fmt.Sprintf("%s permission %d on role %s", accessWord(access), req.PermissionID, role.Name),
		})
	})
	if err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// SetGrants replaces the whole grant set of a role. Pairs missing from
// the current set are inserted, flipped access flags are updated, and
// grants absent from the new set are removed, all in one transaction
// with a single audit entry.
func (s *Service) SetGrants(ctx context.Context, roleID int64, req SetGrantsRequest, actorID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	current, err := s.repo.ListGrants(ctx, roleID)
	if err != nil {
		return err
	}
	desired := make(map[int64]bool, len(req.Grants))
	for _, g := range req.Grants {
		if _, ok := desired[g.PermissionID]; ok {
			return fmt.Errorf("%w: duplicate permission %d in grant set", httpx.ErrValidation, g.PermissionID)
		}
		desired[g.PermissionID] = g.Access != nil && *g.Access
	}
	existing := make(map[int64]bool, len(current))
	for _, g := range current {
		existing[g.PermissionID] = g.Access
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		for _, g := range req.Grants {
			access := desired[g.PermissionID]
			have, ok := existing[g.PermissionID]
			switch {
			case !ok:
				if err := tx.InsertGrant(ctx, roleID, g.PermissionID, access); err != nil {
					return err
				}
			case have != access:
				if err := tx.UpdateGrant(ctx, roleID, g.PermissionID, access); err != nil {
					return err
				}
			}
		}
		for _, g := range current {
			if _, ok := desired[g.PermissionID]; !ok {
				if err := tx.DeleteGrant(ctx, roleID, g.PermissionID); err != nil {
					return err
				}
			}
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionUpdate,
			Entity:   "role_permissions",
			EntityID: strconv.FormatInt(roleID, 10),
			Detail:   fmt.Sprintf("replaced grants of role %s with %d entries", role.Name, len(req.Grants)),
		})
	})
	if err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// UpdateGrant flips the access flag of an existing grant.
func (s *Service) UpdateGrant(ctx context.Context, roleID, permissionID int64, req UpdateGrantRequest, actorID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	access := req.Access != nil && *req.Access

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.UpdateGrant(ctx, roleID, permissionID, access); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionUpdate,
			Entity:   "role_permissions",
			EntityID: grantKey(roleID, permissionID),
			Detail:   fmt.Sprintf("changed permission %d on role %s to %s", permissionID, role.Name, accessWord(access)),
		})
	})
	if err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// Revoke removes a grant from a role.
func (s *Service) Revoke(ctx context.Context, roleID, permissionID int64, actorID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.DeleteGrant(ctx, roleID, permissionID); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionDelete,
			Entity:   "role_permissions",
			EntityID: grantKey(roleID, permissionID),
			Detail:   fmt.Sprintf("revoked permission %d from role %s", permissionID, role.Name),
		})
	})
	if err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// invalidateRole drops cached resolutions for every member of a role.
// Invalidation failures are logged, not surfaced: the entries expire by
// TTL regardless.
func (s *Service) invalidateRole(ctx context.Context, roleID int64) {
	if s.cache == nil {
		return
	}
	memberIDs, err := s.repo.MemberIDsForRole(ctx, roleID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("list members for invalidation", slog.Int64("role_id", roleID), slog.Any("error", err))
		}
		return
	}
	s.invalidateMembers(ctx, memberIDs)
}

func (s *Service) invalidateMembers(ctx context.Context, memberIDs []int64) {
	if s.cache == nil {
		return
	}
	for _, id := range memberIDs {
		if err := s.cache.Invalidate(ctx, id); err != nil && s.logger != nil {
			s.logger.Warn("invalidate rsop cache", slog.Int64("member_id", id), slog.Any("error", err))
		}
	}
}

func grantKey(roleID, permissionID int64) string {
	return strconv.FormatInt(roleID, 10) + ":" + strconv.FormatInt(permissionID, 10)
}

func accessWord(access bool) string {
	if access {
		return "allowed"
	}
	return "denied"
}
