package notification_test

import (
	"context"
	"sync"

	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/notification"
	"github.com/frahmantamala/survey-management/internal/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type call struct {
	target notification.Target
	event  notification.Event
}

type recordingDispatcher struct {
	mu       sync.Mutex
	calls    []call
	failures []string
}

func (d *recordingDispatcher) Notify(_ context.Context, target notification.Target, ev notification.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call{target: target, event: ev})
	return 1
}

func (d *recordingDispatcher) FailedLogin(_ context.Context, username, _ string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, username)
}

var _ = Describe("Subscriber", func() {
	var (
		ctx        context.Context
		bus        *events.EventBus
		dispatcher *recordingDispatcher
		root       identity.Actor
		colombo    identity.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		bus = events.NewEventBus(testutil.Logger())
		dispatcher = &recordingDispatcher{}
		notification.NewSubscriber(dispatcher, testutil.Logger()).Register(bus)

		root = identity.Actor{ID: 1, Username: "root", Role: identity.RoleSuperAdmin}
		colombo = identity.Actor{ID: 2, Username: "colombo_admin", Role: identity.RoleDistrictAdmin, District: "Colombo"}
	})

	It("sends submissions to super admins and the district's admins", func() {
		field := identity.Actor{ID: 3, Username: "dehiwala_user", Role: identity.RoleDivisionUser, District: "Colombo", Division: "Dehiwala"}
		Expect(bus.PublishSync(ctx, events.NewSubmissionCreatedEvent(field, 9, "Colombo", "Dehiwala", ""))).To(Succeed())

		Expect(dispatcher.calls).To(HaveLen(1))
		c := dispatcher.calls[0]
		Expect(c.target).To(Equal(notification.SuperAndDistrictAdmins("Colombo")))
		Expect(c.event.Kind).To(Equal(action.CreateSubmission))
		Expect(c.event.Category).To(Equal(notification.CategorySubmission))
		Expect(*c.event.RelatedSubmissionID).To(Equal(int64(9)))
	})

	It("includes district admins only for new division users", func() {
		admin := identity.Actor{ID: 4, Username: "kandy_admin", Role: identity.RoleDistrictAdmin, District: "Kandy"}
		Expect(bus.PublishSync(ctx, events.NewAccountCreatedEvent(root, admin))).To(Succeed())
		user := identity.Actor{ID: 5, Username: "maharagama_user", Role: identity.RoleDivisionUser, District: "Colombo", Division: "Maharagama"}
		Expect(bus.PublishSync(ctx, events.NewAccountCreatedEvent(colombo, user))).To(Succeed())

		Expect(dispatcher.calls).To(HaveLen(2))
		Expect(dispatcher.calls[0].target).To(Equal(notification.SuperAdmins()))
		Expect(dispatcher.calls[1].target).To(Equal(notification.SuperAndDistrictAdmins("Colombo")))
	})

	It("maps status changes to activate or deactivate", func() {
		subject := identity.Actor{ID: 5, Username: "maharagama_user", Role: identity.RoleDivisionUser}
		Expect(bus.PublishSync(ctx, events.NewAccountStatusChangedEvent(colombo, subject, false))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewAccountStatusChangedEvent(colombo, subject, true))).To(Succeed())

		Expect(dispatcher.calls[0].event.Kind).To(Equal(action.DeactivateUser))
		Expect(dispatcher.calls[1].event.Kind).To(Equal(action.ActivateUser))
	})

	It("treats password resets as high priority security events", func() {
		subject := identity.Actor{ID: 5, Username: "maharagama_user", Role: identity.RoleDivisionUser}
		Expect(bus.PublishSync(ctx, events.NewPasswordResetEvent(colombo, subject, true))).To(Succeed())

		c := dispatcher.calls[0]
		Expect(c.target).To(Equal(notification.SuperAdmins()))
		Expect(c.event.Priority).To(Equal(notification.PriorityHigh))
		Expect(c.event.Category).To(Equal(notification.CategorySecurity))
	})

	It("routes failed logins through coalescing", func() {
		Expect(bus.PublishSync(ctx, events.NewLoginFailedEvent("ghost", "10.0.0.1", "unknown user"))).To(Succeed())
		Expect(dispatcher.failures).To(Equal([]string{"ghost"}))
		Expect(dispatcher.calls).To(BeEmpty())
	})

	It("announces exports to super admins", func() {
		Expect(bus.PublishSync(ctx, events.NewLogsExportedEvent(root, 12))).To(Succeed())
		c := dispatcher.calls[0]
		Expect(c.event.Kind).To(Equal(action.ExportLogs))
		Expect(c.event.Details).To(Equal(notification.ExportDetails{RecordCount: 12}))
		Expect(c.event.Priority).To(Equal(notification.PriorityLow))
	})
})
