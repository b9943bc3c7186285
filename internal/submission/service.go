package submission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	submissionDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/submission"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/core/scope"
)

type RepositoryAPI interface {
	Create(ctx context.Context, row *submissionDatamodel.Submission) error
	GetByID(ctx context.Context, id int64) (*submissionDatamodel.Submission, error)
	List(ctx context.Context, filter scope.Filter, filters Filters, page Page) ([]*submissionDatamodel.Submission, int64, error)
	CountByDistrict(ctx context.Context, from, to *time.Time) ([]DistrictCount, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actor *identity.Actor, kind action.Kind, target action.Target, details map[string]any)
}

type Service struct {
	repo      RepositoryAPI
	recorder  AuditRecorder
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, recorder AuditRecorder, publisher events.Publisher, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		recorder:  recorder,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
	}
}

// Create files a submission for the actor's own district and division. Only
// division users submit.
func (s *Service) Create(ctx context.Context, actor identity.Actor, dto CreateSubmissionDTO) (*Submission, error) {
	if !actor.IsDivisionUser() {
		return nil, internal.NewForbiddenError("Only division users can create submissions", internal.ErrCodeInsufficientRole)
	}
	if actor.District == "" || actor.Division == "" {
		return nil, internal.NewForbiddenError("Account has no district or division assigned", internal.ErrCodeInvalidScope)
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	sub := &Submission{
		SubmittedBy:    actor.ID,
		District:       actor.District,
		Division:       actor.Division,
		SubDivision:    dto.SubDivision,
		Classification: dto.Classification,
		Payload:        dto.Payload,
		Proposals:      dto.Proposals,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	row := ToDataModel(sub)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("submission.Create: %w", err)
	}
	sub.ID = row.ID
	if sub.Proposals == nil {
		sub.Proposals = []Proposal{}
	}

	s.logger.Info("submission created", "submission_id", sub.ID, "district", sub.District, "division", sub.Division, "submitted_by", actor.ID)
	s.recorder.Record(ctx, &actor, action.CreateSubmission, action.SubmissionTarget(sub.ID), map[string]any{
		"district":     sub.District,
		"division":     sub.Division,
		"sub_division": sub.SubDivision,
	})
	if s.publisher != nil {
		if err := s.publisher.PublishSync(ctx, events.NewSubmissionCreatedEvent(actor, sub.ID, sub.District, sub.Division, sub.SubDivision)); err != nil {
			s.logger.Warn("submission event handlers failed", "submission_id", sub.ID, "error", err)
		}
	}
	return sub, nil
}

// List returns submissions within the actor's scope. Explicit filters are ANDed
// with the scope, so asking for another district yields nothing.
func (s *Service) List(ctx context.Context, actor identity.Actor, filters Filters, page Page) ([]*Submission, int64, error) {
	if filters.From != nil && filters.To != nil && filters.From.After(*filters.To) {
		return nil, 0, internal.NewValidationFieldError("from", "from must not be after to", internal.ErrCodeInvalidDate)
	}
	if page.Limit <= 0 || page.Limit > 200 {
		page.Limit = 50
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	rows, total, err := s.repo.List(ctx, scope.FilterFor(actor), filters, page)
	if err != nil {
		return nil, 0, fmt.Errorf("submission.List: %w", err)
	}

	s.recorder.Record(ctx, &actor, action.ViewSubmissions, action.Target{Type: action.TargetSubmission}, map[string]any{
		"count":    len(rows),
		"total":    total,
		"district": filters.District,
		"division": filters.Division,
	})
	return fromRows(rows), total, nil
}

func (s *Service) Get(ctx context.Context, actor identity.Actor, id int64) (*Submission, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("submission.Get: %w", err)
	}
	if row == nil {
		return nil, internal.ErrSubmissionNotFound
	}
	if !scope.FilterFor(actor).Allows(row.District, row.SubmittedBy) {
		return nil, internal.ErrOutOfScope
	}
	return FromDataModel(row), nil
}

// CountByDistrict counts submissions per district created in [from, to).
func (s *Service) CountByDistrict(ctx context.Context, from, to time.Time) ([]DistrictCount, error) {
	f, t := from.UTC(), to.UTC()
	counts, err := s.repo.CountByDistrict(ctx, &f, &t)
	if err != nil {
		return nil, fmt.Errorf("submission.CountByDistrict: %w", err)
	}
	return counts, nil
}

// CumulativeByDistrict counts every submission ever filed, per district.
func (s *Service) CumulativeByDistrict(ctx context.Context) ([]DistrictCount, error) {
	counts, err := s.repo.CountByDistrict(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("submission.CumulativeByDistrict: %w", err)
	}
	return counts, nil
}
