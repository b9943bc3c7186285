package account_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/account"
	accountPostgres "github.com/frahmantamala/survey-management/internal/account/postgres"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type recordingAudit struct {
	kinds []action.Kind
}

func (a *recordingAudit) Record(_ context.Context, _ *identity.Actor, kind action.Kind, _ action.Target, _ map[string]any) {
	a.kinds = append(a.kinds, kind)
}

func appErr(err error) *internal.AppError {
	var ae *internal.AppError
	Expect(errors.As(err, &ae)).To(BeTrue(), "expected an AppError, got %v", err)
	return ae
}

var _ = Describe("Account Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		audit     *recordingAudit
		published []*events.AccountEvent
		service   *account.Service
		root      identity.Actor
	)

	create := func(actor identity.Actor, username string, role identity.Role, district, division string) (*account.Account, error) {
		return service.Create(ctx, actor, account.CreateAccountDTO{
			Username: username,
			Password: "secret-pass-1",
			Role:     string(role),
			District: district,
			Division: division,
		})
	}

	BeforeEach(func() {
		var err error
		db, err = testutil.OpenDB()
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		audit = &recordingAudit{}
		published = nil

		bus := events.NewEventBus(testutil.Logger())
		capture := func(_ context.Context, e events.Event) error {
			published = append(published, e.(*events.AccountEvent))
			return nil
		}
		for _, t := range []string{events.EventTypeAccountCreated, events.EventTypeAccountUpdated,
			events.EventTypeAccountStatusChanged, events.EventTypeAccountDeleted, events.EventTypePasswordReset} {
			bus.Subscribe(t, capture)
		}

		clk := clock.NewMock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
		service = account.NewService(accountPostgres.NewAccountRepository(db), audit, bus, clk, bcrypt.MinCost, testutil.Logger())

		row, err := testutil.SeedAccount(db, "root", identity.RoleSuperAdmin, "", "")
		Expect(err).NotTo(HaveOccurred())
		root = testutil.ActorOf(row)
	})

	Describe("Create", func() {
		It("lets a super admin create a district admin", func() {
			acc, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "ignored")
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.ID).To(BeNumerically(">", 0))
			Expect(acc.Division).To(BeEmpty())
			Expect(*acc.CreatedBy).To(Equal(root.ID))
			Expect(acc.CheckPassword("secret-pass-1")).To(BeTrue())

			Expect(audit.kinds).To(Equal([]action.Kind{action.CreateUser}))
			Expect(published).To(HaveLen(1))
			Expect(published[0].EventType()).To(Equal(events.EventTypeAccountCreated))
			Expect(published[0].District).To(Equal("Colombo"))
		})

		It("refuses a second active district admin for the same district", func() {
			_, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())

			_, err = create(root, "colombo_admin_2", identity.RoleDistrictAdmin, "Colombo", "")
			ae := appErr(err)
			Expect(ae.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(ae.Code).To(Equal(internal.ErrCodeDistrictAdminExists))
			Expect(ae.GetDetailedMessage()).To(ContainSubstring("colombo_admin"))
		})

		It("allows a new district admin once the previous one is deactivated", func() {
			first, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())

			inactive := false
			_, err = service.Update(ctx, root, first.ID, account.UpdateAccountDTO{IsActive: &inactive})
			Expect(err).NotTo(HaveOccurred())

			_, err = create(root, "colombo_admin_2", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())

			active := true
			_, err = service.Update(ctx, root, first.ID, account.UpdateAccountDTO{IsActive: &active})
			Expect(appErr(err).Code).To(Equal(internal.ErrCodeDistrictAdminExists))
		})

		It("refuses a taken username", func() {
			_, err := create(root, "root", identity.RoleSuperAdmin, "", "")
			ae := appErr(err)
			Expect(ae.StatusCode).To(Equal(http.StatusConflict))
			Expect(ae.Code).To(Equal(internal.ErrCodeUsernameTaken))
		})

		Context("as a district admin", func() {
			var colombo identity.Actor

			BeforeEach(func() {
				acc, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
				Expect(err).NotTo(HaveOccurred())
				colombo = acc.Actor()
			})

			It("creates division users in the own district, inheriting it when omitted", func() {
				acc, err := create(colombo, "dehiwala_user", identity.RoleDivisionUser, "", "Dehiwala")
				Expect(err).NotTo(HaveOccurred())
				Expect(acc.District).To(Equal("Colombo"))
			})

			It("refuses a second active user for the same division", func() {
				_, err := create(colombo, "dehiwala_user", identity.RoleDivisionUser, "Colombo", "Dehiwala")
				Expect(err).NotTo(HaveOccurred())

				_, err = create(colombo, "dehiwala_user_2", identity.RoleDivisionUser, "Colombo", "Dehiwala")
				Expect(appErr(err).Code).To(Equal(internal.ErrCodeDivisionUserExists))
			})

			It("cannot create accounts in another district", func() {
				_, err := create(colombo, "kandy_user", identity.RoleDivisionUser, "Kandy", "Peradeniya")
				ae := appErr(err)
				Expect(ae.StatusCode).To(Equal(http.StatusForbidden))
				Expect(ae.Code).To(Equal(internal.ErrCodeOutOfScope))
			})

			It("cannot create other admins", func() {
				_, err := create(colombo, "gampaha_admin", identity.RoleDistrictAdmin, "Colombo", "")
				Expect(appErr(err).StatusCode).To(Equal(http.StatusForbidden))
			})
		})

		It("forbids division users from creating accounts", func() {
			row, err := testutil.SeedAccount(db, "dehiwala_user", identity.RoleDivisionUser, "Colombo", "Dehiwala")
			Expect(err).NotTo(HaveOccurred())

			_, err = create(testutil.ActorOf(row), "another", identity.RoleDivisionUser, "Colombo", "Dehiwala")
			ae := appErr(err)
			Expect(ae.StatusCode).To(Equal(http.StatusForbidden))
			Expect(ae.Message).To(Equal("You are not allowed to create accounts"))
		})

		It("validates the payload before touching the database", func() {
			_, err := create(root, "ab", identity.RoleDivisionUser, "", "")
			Expect(appErr(err).StatusCode).To(Equal(http.StatusBadRequest))
			Expect(published).To(BeEmpty())
		})
	})

	Describe("visibility", func() {
		var colombo, kandy identity.Actor
		var colomboUser, kandyUser *account.Account

		BeforeEach(func() {
			acc, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())
			colombo = acc.Actor()
			acc, err = create(root, "kandy_admin", identity.RoleDistrictAdmin, "Kandy", "")
			Expect(err).NotTo(HaveOccurred())
			kandy = acc.Actor()

			colomboUser, err = create(colombo, "dehiwala_user", identity.RoleDivisionUser, "Colombo", "Dehiwala")
			Expect(err).NotTo(HaveOccurred())
			kandyUser, err = create(kandy, "peradeniya_user", identity.RoleDivisionUser, "Kandy", "Peradeniya")
			Expect(err).NotTo(HaveOccurred())
		})

		It("hides accounts outside the district admin's scope", func() {
			_, err := service.Get(ctx, colombo, kandyUser.ID)
			Expect(err).To(MatchError(internal.ErrOutOfScope))

			acc, err := service.Get(ctx, colombo, colomboUser.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.Username).To(Equal("dehiwala_user"))
		})

		It("lets anyone read their own account", func() {
			acc, err := service.Get(ctx, colomboUser.Actor(), colomboUser.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.ID).To(Equal(colomboUser.ID))
		})

		It("reports missing accounts", func() {
			_, err := service.Get(ctx, root, 9999)
			Expect(err).To(MatchError(internal.ErrAccountNotFound))
		})

		It("lists only the district for district admins, ignoring a district filter", func() {
			accounts, total, err := service.List(ctx, colombo, account.ListFilters{District: "Kandy"}, account.Page{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeNumerically("==", 2))
			for _, a := range accounts {
				Expect(a.District).To(Equal("Colombo"))
			}
		})

		It("lists everyone for super admins", func() {
			_, total, err := service.List(ctx, root, account.ListFilters{}, account.Page{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeNumerically("==", 5))
		})

		It("returns only managed accounts as subordinates", func() {
			subs, err := service.Subordinates(ctx, colombo)
			Expect(err).NotTo(HaveOccurred())
			Expect(subs).To(HaveLen(1))
			Expect(subs[0].ID).To(Equal(colomboUser.ID))

			_, err = service.Subordinates(ctx, colomboUser.Actor())
			Expect(appErr(err).StatusCode).To(Equal(http.StatusForbidden))
		})

		It("refuses updates and resets outside the scope", func() {
			name := "Renamed"
			_, err := service.Update(ctx, colombo, kandyUser.ID, account.UpdateAccountDTO{FullName: &name})
			Expect(appErr(err).Code).To(Equal(internal.ErrCodeOutOfScope))

			err = service.ResetPassword(ctx, colombo, kandyUser.ID, account.ResetPasswordDTO{NewPassword: "new-secret-1"})
			Expect(appErr(err).Code).To(Equal(internal.ErrCodeOutOfScope))
		})
	})

	Describe("Update", func() {
		It("records status changes and field changes separately", func() {
			acc, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())
			audit.kinds = nil
			published = nil

			name := "Colombo Admin"
			inactive := false
			updated, err := service.Update(ctx, root, acc.ID, account.UpdateAccountDTO{FullName: &name, IsActive: &inactive})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.IsActive).To(BeFalse())
			Expect(updated.FullName).To(Equal(name))

			Expect(audit.kinds).To(Equal([]action.Kind{action.DeactivateUser, action.UpdateUser}))
			Expect(published).To(HaveLen(2))
		})

		It("is a no-op when nothing changes", func() {
			acc, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())
			audit.kinds = nil

			active := true
			_, err = service.Update(ctx, root, acc.ID, account.UpdateAccountDTO{IsActive: &active})
			Expect(err).NotTo(HaveOccurred())
			Expect(audit.kinds).To(BeEmpty())
		})

		It("only lets division users carry a division", func() {
			acc, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())

			division := "Dehiwala"
			_, err = service.Update(ctx, root, acc.ID, account.UpdateAccountDTO{Division: &division})
			Expect(appErr(err).Code).To(Equal(internal.ErrCodeInvalidScope))
		})
	})

	Describe("passwords", func() {
		It("changes the own password only with the current one", func() {
			err := service.ChangePassword(ctx, root, account.ChangePasswordDTO{CurrentPassword: "wrong", NewPassword: "brand-new-pass"})
			Expect(appErr(err).Code).To(Equal(internal.ErrCodeIncorrectPassword))

			err = service.ChangePassword(ctx, root, account.ChangePasswordDTO{CurrentPassword: testutil.Password, NewPassword: "brand-new-pass"})
			Expect(err).NotTo(HaveOccurred())

			acc, err := service.FindByID(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.CheckPassword("brand-new-pass")).To(BeTrue())
			Expect(audit.kinds).To(ContainElement(action.ChangePassword))
		})

		It("resets a managed account's password", func() {
			acc, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(service.ResetPassword(ctx, root, acc.ID, account.ResetPasswordDTO{NewPassword: "reset-pass-1"})).To(Succeed())

			reloaded, err := service.FindByID(ctx, acc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.CheckPassword("reset-pass-1")).To(BeTrue())
			Expect(published[len(published)-1].EventType()).To(Equal(events.EventTypePasswordReset))
		})
	})

	Describe("Delete", func() {
		It("refuses to delete the own account", func() {
			err := service.Delete(ctx, root, root.ID)
			Expect(appErr(err).Code).To(Equal(internal.ErrCodeCannotModifySelf))
		})

		It("deletes a managed account", func() {
			acc, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Delete(ctx, root, acc.ID)).To(Succeed())
			_, err = service.Get(ctx, root, acc.ID)
			Expect(err).To(MatchError(internal.ErrAccountNotFound))
			Expect(audit.kinds).To(ContainElement(action.DeleteUser))
		})
	})

	Describe("Bootstrap", func() {
		It("creates the first super admin once", func() {
			acc, created, err := service.Bootstrap(ctx, "superadmin", "bootstrap-pass", "Super Admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(acc.Role).To(Equal(identity.RoleSuperAdmin))

			again, created, err := service.Bootstrap(ctx, "superadmin", "other-pass-123", "Super Admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(again.ID).To(Equal(acc.ID))
		})
	})

	Describe("ActiveRecipients", func() {
		It("resolves super admins plus the admins of one district", func() {
			_, err := create(root, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())
			_, err = create(root, "kandy_admin", identity.RoleDistrictAdmin, "Kandy", "")
			Expect(err).NotTo(HaveOccurred())

			actors, err := service.ActiveRecipients(ctx,
				[]identity.Role{identity.RoleSuperAdmin},
				[]identity.Role{identity.RoleDistrictAdmin}, "Colombo")
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(actors))
			for _, a := range actors {
				names = append(names, a.Username)
			}
			Expect(names).To(ConsistOf("root", "colombo_admin"))
		})
	})

	Describe("InactiveDivisionUsers", func() {
		It("returns active division users with no submission in the trailing window", func() {
			now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

			recent, err := testutil.SeedAccount(db, "recent", identity.RoleDivisionUser, "Colombo", "Dehiwala")
			Expect(err).NotTo(HaveOccurred())
			Expect(testutil.SeedSubmissions(db, recent, 2, now.AddDate(0, 0, -3))).To(Succeed())

			_, err = testutil.SeedAccount(db, "idle", identity.RoleDivisionUser, "Colombo", "Maharagama")
			Expect(err).NotTo(HaveOccurred())

			old, err := testutil.SeedAccount(db, "old", identity.RoleDivisionUser, "Kandy", "Gangawata Korale")
			Expect(err).NotTo(HaveOccurred())
			Expect(testutil.SeedSubmissions(db, old, 1, now.AddDate(0, 0, -40))).To(Succeed())

			disabled, err := testutil.SeedAccount(db, "disabled", identity.RoleDivisionUser, "Kandy", "Pathadumbara")
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(disabled).Update("is_active", false).Error).NotTo(HaveOccurred())

			_, err = testutil.SeedAccount(db, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
			Expect(err).NotTo(HaveOccurred())

			actors, err := service.InactiveDivisionUsers(ctx, now.AddDate(0, 0, -30))
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(actors))
			for _, a := range actors {
				names = append(names, a.Username)
			}
			Expect(names).To(ConsistOf("idle", "old"))
		})
	})
})
