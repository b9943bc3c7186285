package notification_test

import (
	"encoding/json"
	"time"

	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/notification"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Render", func() {
	It("produces a message for every action kind without details", func() {
		for _, kind := range action.All() {
			msg := notification.Render(kind, nil, "alice")
			Expect(msg).NotTo(BeEmpty(), string(kind))
			Expect(msg).To(HavePrefix("alice performed "))
		}
	})

	It("names the system when there is no actor", func() {
		Expect(notification.Render(action.LogCleanup, nil, "")).To(Equal("System performed log cleanup"))
	})

	It("renders submission details with the full place", func() {
		msg := notification.Render(action.CreateSubmission, notification.SubmissionDetails{
			SubmissionID: 7,
			District:     "Colombo",
			Division:     "Dehiwala",
			SubDivision:  "Kalubowila",
		}, "dehiwala_user")
		Expect(msg).To(Equal("New submission by dehiwala_user for Kalubowila, Dehiwala, Colombo"))
	})

	It("renders account lifecycle variants per kind", func() {
		d := notification.AccountDetails{Username: "kandy_admin", Role: "district_admin", District: "Kandy"}
		Expect(notification.Render(action.CreateUser, d, "root")).To(Equal("root created district admin account 'kandy_admin' in Kandy"))
		Expect(notification.Render(action.DeactivateUser, d, "root")).To(Equal("root deactivated account 'kandy_admin'"))
		Expect(notification.Render(action.ResetPassword, d, "root")).To(Equal("root reset the password of 'kandy_admin'"))

		d.Changes = []string{"email", "full_name"}
		Expect(notification.Render(action.UpdateUser, d, "root")).To(Equal("root updated account 'kandy_admin' (email, full_name)"))
	})

	It("falls back to the generic template when a variant meets a foreign kind", func() {
		msg := notification.Render(action.Login, notification.SubmissionDetails{District: "Colombo"}, "bob")
		Expect(msg).To(Equal("bob performed login"))
	})

	It("pluralizes failed login attempts", func() {
		one := notification.FailedLoginDetails{Username: "ghost", Count: 1, LastAttemptAddress: "10.0.0.1"}
		Expect(notification.Render(action.FailedLogin, one, "")).To(Equal("1 failed login attempt for 'ghost', last from 10.0.0.1"))

		four := notification.FailedLoginDetails{Username: "ghost", Count: 4}
		Expect(notification.Render(action.FailedLogin, four, "")).To(Equal("4 failed login attempts for 'ghost'"))
	})

	It("dates retention messages", func() {
		cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		Expect(notification.Render(action.LogCleanup, notification.CleanupDetails{DeletedCount: 12, CutoffDate: cutoff}, "")).
			To(Equal("Activity log cleanup removed 12 entries older than 2024-01-01"))
	})
})

var _ = Describe("DecodeDetails", func() {
	It("restores the variant stored for the kind", func() {
		raw, err := json.Marshal(notification.MilestoneDetails{District: "Colombo", Milestone: 100, Count: 103})
		Expect(err).NotTo(HaveOccurred())

		d, err := notification.DecodeDetails(action.MilestoneReached, raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(notification.MilestoneDetails{District: "Colombo", Milestone: 100, Count: 103}))
	})

	It("uses generic details for kinds without a variant", func() {
		d, err := notification.DecodeDetails(action.Login, []byte(`{"reason":"x"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(notification.GenericDetails{"reason": "x"}))
	})

	It("returns nil for empty payloads", func() {
		d, err := notification.DecodeDetails(action.FailedLogin, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeNil())
	})

	It("reports malformed payloads", func() {
		_, err := notification.DecodeDetails(action.FailedLogin, []byte(`{"count":"many"}`))
		Expect(err).To(HaveOccurred())
	})
})
