package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	accountDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/account"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/core/scope"
)

type RepositoryAPI interface {
	Create(ctx context.Context, account *accountDatamodel.Account) error
	GetByID(ctx context.Context, id int64) (*accountDatamodel.Account, error)
	GetByUsername(ctx context.Context, username string) (*accountDatamodel.Account, error)
	List(ctx context.Context, filter scope.Filter, filters ListFilters, page Page) ([]*accountDatamodel.Account, int64, error)
	Update(ctx context.Context, account *accountDatamodel.Account) error
	Delete(ctx context.Context, id int64) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	FindActiveDistrictAdmin(ctx context.Context, district string, excludeID int64) (*accountDatamodel.Account, error)
	FindActiveDivisionUser(ctx context.Context, district, division string, excludeID int64) (*accountDatamodel.Account, error)
	ListActive(ctx context.Context, roles []string, districtRoles []string, district string) ([]*accountDatamodel.Account, error)
	ListInactiveDivisionUsers(ctx context.Context, since time.Time) ([]*accountDatamodel.Account, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actor *identity.Actor, kind action.Kind, target action.Target, details map[string]any)
}

type Service struct {
	repo       RepositoryAPI
	recorder   AuditRecorder
	publisher  events.Publisher
	clock      clock.Clock
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, recorder AuditRecorder, publisher events.Publisher, clk clock.Clock, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		recorder:   recorder,
		publisher:  publisher,
		clock:      clk,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *Service) Create(ctx context.Context, actor identity.Actor, dto CreateAccountDTO) (*Account, error) {
	if err := authorizeCreate(actor, &dto); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	role := identity.Role(dto.Role)
	if role == identity.RoleSuperAdmin {
		dto.District, dto.Division = "", ""
	} else if role == identity.RoleDistrictAdmin {
		dto.Division = ""
	}

	existing, err := s.repo.GetByUsername(ctx, dto.Username)
	if err != nil {
		return nil, fmt.Errorf("account.Create: lookup username: %w", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError(fmt.Sprintf("Username '%s' is already taken", dto.Username), internal.ErrCodeUsernameTaken)
	}

	candidate := &Account{Role: role, District: dto.District, Division: dto.Division, IsActive: true}
	if err := s.checkScopeUniqueness(ctx, candidate); err != nil {
		return nil, err
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("account.Create: hash password: %w", err)
	}

	now := s.clock.Now().UTC()
	createdBy := actor.ID
	acc := &Account{
		Username:     dto.Username,
		PasswordHash: hash,
		FullName:     dto.FullName,
		Email:        dto.Email,
		Role:         role,
		District:     dto.District,
		Division:     dto.Division,
		IsActive:     true,
		CreatedBy:    &createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	row := ToDataModel(acc)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("account.Create: %w", err)
	}
	acc.ID = row.ID

	s.logger.Info("account created", "account_id", acc.ID, "username", acc.Username, "role", acc.Role, "created_by", actor.ID)
	s.recorder.Record(ctx, &actor, action.CreateUser, action.UserTarget(acc.ID), map[string]any{
		"username": acc.Username,
		"role":     string(acc.Role),
		"district": acc.District,
		"division": acc.Division,
	})
	s.publish(ctx, events.NewAccountCreatedEvent(actor, acc.Actor()))

	return acc, nil
}

// authorizeCreate enforces who may create what. District admins inherit their
// own district when none is given.
func authorizeCreate(actor identity.Actor, dto *CreateAccountDTO) error {
	switch actor.Role {
	case identity.RoleSuperAdmin:
		return nil
	case identity.RoleDistrictAdmin:
		if identity.Role(dto.Role) != identity.RoleDivisionUser {
			return internal.NewForbiddenError("District admins can only create division users", internal.ErrCodeInsufficientRole)
		}
		if dto.District == "" {
			dto.District = actor.District
		}
		if dto.District != actor.District {
			return internal.NewForbiddenError("District admins can only create accounts in their own district", internal.ErrCodeOutOfScope)
		}
		return nil
	default:
		return internal.NewForbiddenError("You are not allowed to create accounts", internal.ErrCodeInsufficientRole)
	}
}

// checkScopeUniqueness enforces one active district admin per district and one
// active division user per (district, division).
func (s *Service) checkScopeUniqueness(ctx context.Context, acc *Account) error {
	if !acc.IsActive {
		return nil
	}
	switch acc.Role {
	case identity.RoleDistrictAdmin:
		other, err := s.repo.FindActiveDistrictAdmin(ctx, acc.District, acc.ID)
		if err != nil {
			return fmt.Errorf("account: check district admin: %w", err)
		}
		if other != nil {
			return internal.NewValidationFieldError("district",
				fmt.Sprintf("District '%s' already has an active district admin: %s", acc.District, other.Username),
				internal.ErrCodeDistrictAdminExists)
		}
	case identity.RoleDivisionUser:
		other, err := s.repo.FindActiveDivisionUser(ctx, acc.District, acc.Division, acc.ID)
		if err != nil {
			return fmt.Errorf("account: check division user: %w", err)
		}
		if other != nil {
			return internal.NewValidationFieldError("division",
				fmt.Sprintf("Division '%s' in district '%s' already has an active user: %s", acc.Division, acc.District, other.Username),
				internal.ErrCodeDivisionUserExists)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor identity.Actor, id int64) (*Account, error) {
	acc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !acc.VisibleTo(actor) {
		return nil, internal.ErrOutOfScope
	}
	return acc, nil
}

func (s *Service) List(ctx context.Context, actor identity.Actor, filters ListFilters, page Page) ([]*Account, int64, error) {
	filter := scope.FilterFor(actor)
	if actor.IsDistrictAdmin() {
		filters.District = ""
	}

	rows, total, err := s.repo.List(ctx, filter, filters, normalizePage(page))
	if err != nil {
		return nil, 0, fmt.Errorf("account.List: %w", err)
	}
	return fromRows(rows), total, nil
}

// Subordinates lists the accounts the actor manages.
func (s *Service) Subordinates(ctx context.Context, actor identity.Actor) ([]*Account, error) {
	var filters ListFilters
	switch actor.Role {
	case identity.RoleSuperAdmin:
	case identity.RoleDistrictAdmin:
		filters.Role = string(identity.RoleDivisionUser)
	default:
		return nil, internal.NewForbiddenError("Only administrators have subordinates", internal.ErrCodeInsufficientRole)
	}

	rows, _, err := s.repo.List(ctx, scope.FilterFor(actor), filters, Page{})
	if err != nil {
		return nil, fmt.Errorf("account.Subordinates: %w", err)
	}

	out := make([]*Account, 0, len(rows))
	for _, row := range rows {
		if acc := FromDataModel(row); acc.ManagedBy(actor) {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor identity.Actor, id int64, dto UpdateAccountDTO) (*Account, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	acc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !acc.ManagedBy(actor) {
		return nil, internal.NewForbiddenError("You can only modify accounts you manage", internal.ErrCodeOutOfScope)
	}

	wasActive := acc.IsActive
	var changes []string
	if dto.FullName != nil && *dto.FullName != acc.FullName {
		acc.FullName = *dto.FullName
		changes = append(changes, "full_name")
	}
	if dto.Email != nil && *dto.Email != acc.Email {
		acc.Email = *dto.Email
		changes = append(changes, "email")
	}
	divisionChanged := false
	if dto.Division != nil && *dto.Division != acc.Division {
		if acc.Role != identity.RoleDivisionUser {
			return nil, internal.NewValidationFieldError("division", "Only division users carry a division", internal.ErrCodeInvalidScope)
		}
		acc.Division = *dto.Division
		divisionChanged = true
		changes = append(changes, "division")
	}
	if dto.IsActive != nil {
		acc.IsActive = *dto.IsActive
	}
	statusChanged := acc.IsActive != wasActive

	if (statusChanged && acc.IsActive) || divisionChanged {
		if err := s.checkScopeUniqueness(ctx, acc); err != nil {
			return nil, err
		}
	}

	if len(changes) == 0 && !statusChanged {
		return acc, nil
	}

	acc.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, ToDataModel(acc)); err != nil {
		return nil, fmt.Errorf("account.Update: %w", err)
	}

	target := action.UserTarget(acc.ID)
	if statusChanged {
		kind := action.DeactivateUser
		if acc.IsActive {
			kind = action.ActivateUser
		}
		s.recorder.Record(ctx, &actor, kind, target, map[string]any{"username": acc.Username})
		s.publish(ctx, events.NewAccountStatusChangedEvent(actor, acc.Actor(), acc.IsActive))
	}
	if len(changes) > 0 {
		s.recorder.Record(ctx, &actor, action.UpdateUser, target, map[string]any{
			"username": acc.Username,
			"changes":  changes,
		})
		s.publish(ctx, events.NewAccountUpdatedEvent(actor, acc.Actor(), acc.IsActive, changes))
	}

	return acc, nil
}

func (s *Service) ChangePassword(ctx context.Context, actor identity.Actor, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	acc, err := s.load(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !acc.CheckPassword(dto.CurrentPassword) {
		return internal.NewValidationFieldError("current_password", "Current password is incorrect", internal.ErrCodeIncorrectPassword)
	}

	if err := s.setPassword(ctx, acc, dto.NewPassword); err != nil {
		return fmt.Errorf("account.ChangePassword: %w", err)
	}

	s.recorder.Record(ctx, &actor, action.ChangePassword, action.UserTarget(acc.ID), nil)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, actor identity.Actor, id int64, dto ResetPasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	acc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !acc.ManagedBy(actor) {
		return internal.NewForbiddenError("You can only reset passwords of accounts you manage", internal.ErrCodeOutOfScope)
	}

	if err := s.setPassword(ctx, acc, dto.NewPassword); err != nil {
		return fmt.Errorf("account.ResetPassword: %w", err)
	}

	s.recorder.Record(ctx, &actor, action.ResetPassword, action.UserTarget(acc.ID), map[string]any{"username": acc.Username})
	s.publish(ctx, events.NewPasswordResetEvent(actor, acc.Actor(), acc.IsActive))
	return nil
}

func (s *Service) setPassword(ctx context.Context, acc *Account, password string) error {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash
	acc.UpdatedAt = s.clock.Now().UTC()
	return s.repo.Update(ctx, ToDataModel(acc))
}

func (s *Service) Delete(ctx context.Context, actor identity.Actor, id int64) error {
	if id == actor.ID {
		return internal.NewValidationError("You cannot delete your own account", internal.ErrCodeCannotModifySelf)
	}

	acc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !acc.ManagedBy(actor) {
		return internal.NewForbiddenError("You can only delete accounts you manage", internal.ErrCodeOutOfScope)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("account.Delete: %w", err)
	}

	s.logger.Info("account deleted", "account_id", id, "username", acc.Username, "deleted_by", actor.ID)
	s.recorder.Record(ctx, &actor, action.DeleteUser, action.UserTarget(id), map[string]any{
		"username": acc.Username,
		"role":     string(acc.Role),
	})
	s.publish(ctx, events.NewAccountDeletedEvent(actor, acc.Actor()))
	return nil
}

// ActiveRecipients resolves active accounts whose role is in roles, or whose
// role is in districtRoles and whose district equals district.
func (s *Service) ActiveRecipients(ctx context.Context, roles, districtRoles []identity.Role, district string) ([]identity.Actor, error) {
	rows, err := s.repo.ListActive(ctx, identity.RoleStrings(roles), identity.RoleStrings(districtRoles), district)
	if err != nil {
		return nil, fmt.Errorf("account.ActiveRecipients: %w", err)
	}
	return toActors(rows), nil
}

// InactiveDivisionUsers lists active division users without a submission since since.
func (s *Service) InactiveDivisionUsers(ctx context.Context, since time.Time) ([]identity.Actor, error) {
	rows, err := s.repo.ListInactiveDivisionUsers(ctx, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("account.InactiveDivisionUsers: %w", err)
	}
	return toActors(rows), nil
}

// FindByUsername and FindByID serve authentication; nil means no such account.
func (s *Service) FindByUsername(ctx context.Context, username string) (*Account, error) {
	row, err := s.repo.GetByUsername(ctx, username)
	if err != nil || row == nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) FindByID(ctx context.Context, id int64) (*Account, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) TouchLastLogin(ctx context.Context, id int64) error {
	return s.repo.TouchLastLogin(ctx, id, s.clock.Now().UTC())
}

// Bootstrap creates the first super admin if the username is free. Used by the seed command.
func (s *Service) Bootstrap(ctx context.Context, username, password, fullName string) (*Account, bool, error) {
	existing, err := s.FindByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if err := validationOrNil(CreateAccountDTO{Username: username, Password: password, Role: string(identity.RoleSuperAdmin)}.Validate()); err != nil {
		return nil, false, err
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, false, err
	}
	now := s.clock.Now().UTC()
	acc := &Account{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         identity.RoleSuperAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	row := ToDataModel(acc)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, false, err
	}
	acc.ID = row.ID
	return acc, true, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Account, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account: get %d: %w", id, err)
	}
	if row == nil {
		return nil, internal.ErrAccountNotFound
	}
	return FromDataModel(row), nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.Warn("account event handlers failed", "event_type", event.EventType(), "error", err)
	}
}

func normalizePage(p Page) Page {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func fromRows(rows []*accountDatamodel.Account) []*Account {
	out := make([]*Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out
}

func toActors(rows []*accountDatamodel.Account) []identity.Actor {
	out := make([]identity.Actor, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row).Actor())
	}
	return out
}

func validationOrNil(err *internal.AppError) error {
	if err == nil {
		return nil
	}
	return err
}
