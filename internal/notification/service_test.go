package notification_test

import (
	"context"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	notificationDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/notification"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/notification"
	notificationPostgres "github.com/frahmantamala/survey-management/internal/notification/postgres"
	"github.com/frahmantamala/survey-management/internal/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		clk     *clock.Mock
		service *notification.Service
		alice   identity.Actor
		bob     identity.Actor
	)

	insert := func(recipient identity.Actor, category notification.Category, read bool) int64 {
		now := clk.Now()
		row := &notificationDatamodel.Notification{
			RecipientID: recipient.ID,
			ActionKind:  string(action.CreateSubmission),
			Message:     "m",
			Priority:    string(notification.PriorityMedium),
			Category:    string(category),
			IsRead:      read,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		Expect(db.Create(row).Error).NotTo(HaveOccurred())
		clk.Advance(time.Minute)
		return row.ID
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testutil.OpenDB()
		Expect(err).NotTo(HaveOccurred())
		clk = clock.NewMock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
		service = notification.NewService(notificationPostgres.NewNotificationRepository(db), clk, testutil.Logger())

		alice = identity.Actor{ID: 1, Username: "alice", Role: identity.RoleSuperAdmin}
		bob = identity.Actor{ID: 2, Username: "bob", Role: identity.RoleDistrictAdmin, District: "Colombo"}
	})

	It("lists only the requester's notifications, newest first", func() {
		first := insert(alice, notification.CategorySubmission, false)
		second := insert(alice, notification.CategoryUser, true)
		insert(bob, notification.CategorySubmission, false)

		result, err := service.List(ctx, alice, notification.ListFilters{}, notification.Page{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Total).To(Equal(int64(2)))
		Expect(result.UnreadCount).To(Equal(int64(1)))
		Expect(result.Notifications).To(HaveLen(2))
		Expect(result.Notifications[0].ID).To(Equal(second))
		Expect(result.Notifications[1].ID).To(Equal(first))
	})

	It("filters by unread and category", func() {
		insert(alice, notification.CategorySubmission, false)
		insert(alice, notification.CategorySubmission, true)
		insert(alice, notification.CategoryUser, false)

		result, err := service.List(ctx, alice, notification.ListFilters{UnreadOnly: true, Category: notification.CategorySubmission}, notification.Page{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Total).To(Equal(int64(1)))
	})

	It("rejects unknown categories", func() {
		_, err := service.List(ctx, alice, notification.ListFilters{Category: "gossip"}, notification.Page{})
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
	})

	It("marks one notification read and stamps the time", func() {
		id := insert(alice, notification.CategorySubmission, false)

		n, err := service.MarkRead(ctx, alice, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(n.IsRead).To(BeTrue())
		Expect(n.ReadAt).NotTo(BeNil())

		count, err := service.UnreadCount(ctx, alice)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeZero())
	})

	It("reports someone else's notification as not found", func() {
		id := insert(bob, notification.CategorySubmission, false)

		_, err := service.MarkRead(ctx, alice, id)
		Expect(err).To(MatchError(internal.ErrNotificationNotFound))
		Expect(service.Delete(ctx, alice, id)).To(MatchError(internal.ErrNotificationNotFound))

		count, err := service.UnreadCount(ctx, bob)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))
	})

	It("marks all read and clears read ones with counts", func() {
		insert(alice, notification.CategorySubmission, false)
		insert(alice, notification.CategorySubmission, false)
		insert(alice, notification.CategoryUser, true)
		insert(bob, notification.CategoryUser, false)

		marked, err := service.MarkAllRead(ctx, alice)
		Expect(err).NotTo(HaveOccurred())
		Expect(marked).To(Equal(int64(2)))

		cleared, err := service.ClearRead(ctx, alice)
		Expect(err).NotTo(HaveOccurred())
		Expect(cleared).To(Equal(int64(3)))

		bobs, err := service.UnreadCount(ctx, bob)
		Expect(err).NotTo(HaveOccurred())
		Expect(bobs).To(Equal(int64(1)))
	})
})
