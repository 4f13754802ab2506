package members

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/viper-platform/raps/internal/audit"
	"github.com/viper-platform/raps/internal/platform/httpx"
)

// TxPort groups the mutations available inside one transaction.
type TxPort interface {
	audit.Execer
	InsertMember(ctx context.Context, m Member) (int64, error)
	UpdateMember(ctx context.Context, m Member) error
	InsertMembership(ctx context.Context, memberID, roleID int64, start, end *time.Time) error
	UpdateMembership(ctx context.Context, memberID, roleID int64, start, end *time.Time) error
	DeleteMembership(ctx context.Context, memberID, roleID int64) error
	InsertDirectGrant(ctx context.Context, memberID, permissionID int64, access bool, start, end *time.Time) error
	UpdateDirectGrant(ctx context.Context, memberID, permissionID int64, access bool, start, end *time.Time) error
	DeleteDirectGrant(ctx context.Context, memberID, permissionID int64) error
}

// RepositoryPort defines data access for the member directory.
type RepositoryPort interface {
	ListMembers(ctx context.Context, req ListMembersRequest) ([]Member, error)
	GetMember(ctx context.Context, id int64) (Member, error)
	ListMemberships(ctx context.Context, memberID int64) ([]Membership, error)
	ListDirectGrants(ctx context.Context, memberID int64) ([]DirectGrant, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxPort) error) error
}

// CacheInvalidator drops cached resolutions for a member.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, memberID int64) error
}

// Service handles member directory business logic.
type Service struct {
	repo     RepositoryPort
	auditLog *audit.Logger
	cache    CacheInvalidator
	logger   *slog.Logger
	collator *collate.Collator
}

// NewService builds a Service instance. cache may be nil.
func NewService(repo RepositoryPort, auditLog *audit.Logger, cache CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		auditLog: auditLog,
		cache:    cache,
		logger:   logger,
		collator: collate.New(language.English, collate.IgnoreCase),
	}
}

// List returns directory entries sorted by display name using
// locale-aware collation, so accented names land where a person would
// look for them.
func (s *Service) List(ctx context.Context, req ListMembersRequest) ([]Member, error) {
	out, err := s.repo.ListMembers(ctx, req)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.collator.CompareString(out[i].DisplayName, out[j].DisplayName) < 0
	})
	return out, nil
}

// Get fetches a directory entry by ID.
func (s *Service) Get(ctx context.Context, id int64) (Member, error) {
	return s.repo.GetMember(ctx, id)
}

// Memberships lists role assignments of a member.
func (s *Service) Memberships(ctx context.Context, memberID int64) ([]Membership, error) {
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.repo.ListMemberships(ctx, memberID)
}

// DirectGrants lists direct permission grants of a member.
func (s *Service) DirectGrants(ctx context.Context, memberID int64) ([]DirectGrant, error) {
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.repo.ListDirectGrants(ctx, memberID)
}

// Create registers a new member with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, req CreateMemberRequest, actorID int64) (Member, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Member{}, fmt.Errorf("hash password: %w", err)
	}
	m := Member{
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if m.DisplayName == "" {
		return Member{}, fmt.Errorf("%w: display name required", httpx.ErrValidation)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		id, err := tx.InsertMember(ctx, m)
		if err != nil {
			return err
		}
		m.ID = id
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionCreate,
			Entity:   "members",
			EntityID: strconv.FormatInt(id, 10),
			Detail:   fmt.Sprintf("registered member %s", m.DisplayName),
		})
	})
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

// Update changes directory fields. Deactivating a member drops their
// cached resolution so existing sessions lose access at once.
func (s *Service) Update(ctx context.Context, id int64, req UpdateMemberRequest, actorID int64) (Member, error) {
	m, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return Member{}, err
	}
	deactivated := false
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return Member{}, fmt.Errorf("%w: display name required", httpx.ErrValidation)
		}
		m.DisplayName = name
	}
	if req.Email != nil {
		m.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.IsActive != nil {
		deactivated = m.IsActive && !*req.IsActive
		m.IsActive = *req.IsActive
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.UpdateMember(ctx, m); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionUpdate,
			Entity:   "members",
			EntityID: strconv.FormatInt(id, 10),
			Detail:   fmt.Sprintf("updated member %s", m.DisplayName),
		})
	})
	if err != nil {
		return Member{}, err
	}
	if deactivated {
		s.invalidate(ctx, id)
	}
	return m, nil
}

// AddMembership assigns a role to a member inside an optional window.
func (s *Service) AddMembership(ctx context.Context, memberID int64, req MembershipRequest, actorID int64) error {
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return err
	}
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.InsertMembership(ctx, memberID, req.RoleID, req.StartDate, req.EndDate); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionCreate,
			Entity:   "role_members",
			EntityID: pairKey(memberID, req.RoleID),
			Detail:   fmt.Sprintf("assigned role %d to member %d%s", req.RoleID, memberID, windowSuffix(req.StartDate, req.EndDate)),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, memberID)
	return nil
}

// UpdateMembership changes the window of an existing assignment.
func (s *Service) UpdateMembership(ctx context.Context, memberID, roleID int64, req UpdateMembershipRequest, actorID int64) error {
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return err
	}
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.UpdateMembership(ctx, memberID, roleID, req.StartDate, req.EndDate); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionUpdate,
			Entity:   "role_members",
			EntityID: pairKey(memberID, roleID),
			Detail:   fmt.Sprintf("changed window of role %d for member %d%s", roleID, memberID, windowSuffix(req.StartDate, req.EndDate)),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, memberID)
	return nil
}

// RemoveMembership removes a role assignment.
func (s *Service) RemoveMembership(ctx context.Context, memberID, roleID int64, actorID int64) error {
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.DeleteMembership(ctx, memberID, roleID); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionDelete,
			Entity:   "role_members",
			EntityID: pairKey(memberID, roleID),
			Detail:   fmt.Sprintf("removed role %d from member %d", roleID, memberID),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, memberID)
	return nil
}

// AddDirectGrant attaches a permission straight to a member.
func (s *Service) AddDirectGrant(ctx context.Context, memberID int64, req DirectGrantRequest, actorID int64) error {
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return err
	}
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return err
	}
	access := req.Access != nil && *req.Access

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.InsertDirectGrant(ctx, memberID, req.PermissionID, access, req.StartDate, req.EndDate); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionCreate,
			Entity:   "member_permissions",
			EntityID: pairKey(memberID, req.PermissionID),
			Detail:   fmt.Sprintf("%s permission %d directly for member %d%s", accessWord(access), req.PermissionID, memberID, windowSuffix(req.StartDate, req.EndDate)),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, memberID)
	return nil
}

// UpdateDirectGrant changes flag and/or window of a direct grant.
func (s *Service) UpdateDirectGrant(ctx context.Context, memberID, permissionID int64, req UpdateDirectGrantRequest, actorID int64) error {
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return err
	}
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return err
	}
	access := req.Access != nil && *req.Access

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.UpdateDirectGrant(ctx, memberID, permissionID, access, req.StartDate, req.EndDate); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionUpdate,
			Entity:   "member_permissions",
			EntityID: pairKey(memberID, permissionID),
			Detail:   fmt.Sprintf("changed direct permission %d for member %d to %s", permissionID, memberID, accessWord(access)),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, memberID)
	return nil
}

// RemoveDirectGrant removes a direct grant.
func (s *Service) RemoveDirectGrant(ctx context.Context, memberID, permissionID int64, actorID int64) error {
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := tx.DeleteDirectGrant(ctx, memberID, permissionID); err != nil {
			return err
		}
		return s.auditLog.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionDelete,
			Entity:   "member_permissions",
			EntityID: pairKey(memberID, permissionID),
			Detail:   fmt.Sprintf("removed direct permission %d from member %d", permissionID, memberID),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, memberID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, memberID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, memberID); err != nil && s.logger != nil {
		s.logger.Warn("invalidate rsop cache", slog.Int64("member_id", memberID), slog.Any("error", err))
	}
}

// validateWindow rejects inverted date ranges before anything touches
// the database.
func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: end date precedes start date", httpx.ErrValidation)
	}
	return nil
}

func windowSuffix(start, end *time.Time) string {
	if start == nil && end == nil {
		return ""
	}
	fmtDate := func(t *time.Time) string {
		if t == nil {
			return "open"
		}
		return t.Format("2006-01-02")
	}
	return fmt.Sprintf(" (%s to %s)", fmtDate(start), fmtDate(end))
}

func pairKey(a, b int64) string {
	return strconv.FormatInt(a, 10) + ":" + strconv.FormatInt(b, 10)
}

func accessWord(access bool) string {
	if access {
		return "allowed"
	}
	return "denied"
}
