package notification

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/core/identity"
)

type Dispatcher interface {
	Notify(ctx context.Context, target Target, ev Event) int
	FailedLogin(ctx context.Context, username, address string)
}

// Subscriber turns domain events into notifications. Its handlers never return
// errors; a failed fanout must not fail the operation that published the event.
type Subscriber struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewSubscriber(dispatcher Dispatcher, logger *slog.Logger) *Subscriber {
	return &Subscriber{dispatcher: dispatcher, logger: logger}
}

func (s *Subscriber) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeSubmissionCreated, s.onSubmissionCreated)
	bus.Subscribe(events.EventTypeAccountCreated, s.onAccountCreated)
	bus.Subscribe(events.EventTypeAccountUpdated, s.onAccountChanged)
	bus.Subscribe(events.EventTypeAccountStatusChanged, s.onAccountChanged)
	bus.Subscribe(events.EventTypeAccountDeleted, s.onAccountChanged)
	bus.Subscribe(events.EventTypePasswordReset, s.onAccountChanged)
	bus.Subscribe(events.EventTypeLoginFailed, s.onLoginFailed)
	bus.Subscribe(events.EventTypeLogsExported, s.onLogsExported)
}

func (s *Subscriber) onSubmissionCreated(ctx context.Context, e events.Event) error {
	ev, ok := e.(*events.SubmissionCreatedEvent)
	if !ok {
		s.unexpected(e)
		return nil
	}
	actor := ev.Actor
	id := ev.SubmissionID
	s.dispatcher.Notify(ctx, SuperAndDistrictAdmins(ev.District), Event{
		Kind: action.CreateSubmission,
		Details: SubmissionDetails{
			SubmissionID: ev.SubmissionID,
			District:     ev.District,
			Division:     ev.Division,
			SubDivision:  ev.SubDivision,
		},
		TriggeredBy:         &actor,
		RelatedSubmissionID: &id,
		Priority:            PriorityMedium,
		Category:            CategorySubmission,
	})
	return nil
}

func (s *Subscriber) onAccountCreated(ctx context.Context, e events.Event) error {
	ev, ok := e.(*events.AccountEvent)
	if !ok {
		s.unexpected(e)
		return nil
	}
	target := SuperAdmins()
	if ev.Role == identity.RoleDivisionUser && ev.District != "" {
		target = SuperAndDistrictAdmins(ev.District)
	}
	s.dispatcher.Notify(ctx, target, accountEvent(ev, action.CreateUser, PriorityMedium, CategoryUser))
	return nil
}

func (s *Subscriber) onAccountChanged(ctx context.Context, e events.Event) error {
	ev, ok := e.(*events.AccountEvent)
	if !ok {
		s.unexpected(e)
		return nil
	}

	var n Event
	switch ev.EventType() {
	case events.EventTypeAccountUpdated:
		n = accountEvent(ev, action.UpdateUser, PriorityLow, CategoryUser)
	case events.EventTypeAccountStatusChanged:
		kind := action.DeactivateUser
		if ev.Active {
			kind = action.ActivateUser
		}
		n = accountEvent(ev, kind, PriorityMedium, CategoryUser)
	case events.EventTypeAccountDeleted:
		n = accountEvent(ev, action.DeleteUser, PriorityMedium, CategoryUser)
	case events.EventTypePasswordReset:
		n = accountEvent(ev, action.ResetPassword, PriorityHigh, CategorySecurity)
	default:
		s.unexpected(e)
		return nil
	}
	s.dispatcher.Notify(ctx, SuperAdmins(), n)
	return nil
}

func (s *Subscriber) onLoginFailed(ctx context.Context, e events.Event) error {
	ev, ok := e.(*events.LoginFailedEvent)
	if !ok {
		s.unexpected(e)
		return nil
	}
	s.dispatcher.FailedLogin(ctx, ev.Username, ev.SourceAddress)
	return nil
}

func (s *Subscriber) onLogsExported(ctx context.Context, e events.Event) error {
	ev, ok := e.(*events.LogsExportedEvent)
	if !ok {
		s.unexpected(e)
		return nil
	}
	actor := ev.Actor
	s.dispatcher.Notify(ctx, SuperAdmins(), Event{
		Kind:        action.ExportLogs,
		Details:     ExportDetails{RecordCount: ev.RecordCount},
		TriggeredBy: &actor,
		Priority:    PriorityLow,
		Category:    CategoryExport,
	})
	return nil
}

func (s *Subscriber) unexpected(e events.Event) {
	s.logger.Warn("unexpected event payload", "event_type", e.EventType(), "event_id", e.EventID())
}

func accountEvent(ev *events.AccountEvent, kind action.Kind, priority Priority, category Category) Event {
	actor := ev.Actor
	id := ev.AccountID
	return Event{
		Kind: kind,
		Details: AccountDetails{
			Username: ev.Username,
			Role:     string(ev.Role),
			District: ev.District,
			Division: ev.Division,
			Changes:  ev.Changes,
		},
		TriggeredBy:      &actor,
		RelatedAccountID: &id,
		Priority:         priority,
		Category:         category,
	}
}
