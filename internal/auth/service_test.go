package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/account"
	accountPostgres "github.com/frahmantamala/survey-management/internal/account/postgres"
	"github.com/frahmantamala/survey-management/internal/auth"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	accountDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/account"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/testutil"
	"github.com/frahmantamala/survey-management/internal/transport"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type recordedEntry struct {
	actor   *identity.Actor
	kind    action.Kind
	target  action.Target
	details map[string]any
}

type recordingAudit struct {
	entries []recordedEntry
}

func (a *recordingAudit) Record(_ context.Context, actor *identity.Actor, kind action.Kind, target action.Target, details map[string]any) {
	a.entries = append(a.entries, recordedEntry{actor: actor, kind: kind, target: target, details: details})
}

func (a *recordingAudit) kinds() []action.Kind {
	out := make([]action.Kind, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.kind)
	}
	return out
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		clk      *clock.Mock
		audit    *recordingAudit
		failures []*events.LoginFailedEvent
		service  *auth.Service
		admin    *accountDatamodel.Account
	)

	ginkgo.BeforeEach(func() {
		var err error
		db, err = testutil.OpenDB()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		ctx = internal.ContextWithRequestSource(context.Background(), internal.RequestSource{Address: "10.0.0.9", UserAgent: "ginkgo"})
		clk = clock.NewMock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
		audit = &recordingAudit{}
		failures = nil

		bus := events.NewEventBus(testutil.Logger())
		bus.Subscribe(events.EventTypeLoginFailed, func(_ context.Context, e events.Event) error {
			failures = append(failures, e.(*events.LoginFailedEvent))
			return nil
		})

		accounts := account.NewService(accountPostgres.NewAccountRepository(db), nil, nil, clk, bcrypt.MinCost, testutil.Logger())
		tokens := auth.NewJWTTokenGenerator("test-secret-that-is-long-enough-000", 24*time.Hour, clk.Now)
		service = auth.NewService(accounts, tokens, audit, bus, testutil.Logger())

		admin, err = testutil.SeedAccount(db, "colombo_admin", identity.RoleDistrictAdmin, "Colombo", "")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
	})

	ginkgo.Describe("Login", func() {
		ginkgo.It("should issue a session and record LOGIN for valid credentials", func() {
			session, err := service.Login(ctx, auth.LoginDTO{Username: "colombo_admin", Password: testutil.Password})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(session.Token).ToNot(gomega.BeEmpty())
			gomega.Expect(session.Account.ID).To(gomega.Equal(admin.ID))
			gomega.Expect(audit.kinds()).To(gomega.Equal([]action.Kind{action.Login}))
			gomega.Expect(audit.entries[0].actor.ID).To(gomega.Equal(admin.ID))

			var row accountDatamodel.Account
			gomega.Expect(db.First(&row, admin.ID).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(row.LastLoginAt).ToNot(gomega.BeNil())
		})

		ginkgo.It("should record and publish a wrong password without an actor", func() {
			_, err := service.Login(ctx, auth.LoginDTO{Username: "colombo_admin", Password: "wrong-password"})

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidCredentials))
			gomega.Expect(audit.kinds()).To(gomega.Equal([]action.Kind{action.FailedLogin}))
			gomega.Expect(audit.entries[0].actor).To(gomega.BeNil())
			gomega.Expect(audit.entries[0].details["username"]).To(gomega.Equal("colombo_admin"))

			gomega.Expect(failures).To(gomega.HaveLen(1))
			gomega.Expect(failures[0].Username).To(gomega.Equal("colombo_admin"))
			gomega.Expect(failures[0].SourceAddress).To(gomega.Equal("10.0.0.9"))
		})

		ginkgo.It("should treat an unknown username like a wrong password", func() {
			_, err := service.Login(ctx, auth.LoginDTO{Username: "nobody", Password: "whatever1"})

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidCredentials))
			gomega.Expect(failures).To(gomega.HaveLen(1))
			gomega.Expect(failures[0].Reason).To(gomega.Equal("unknown_user"))
		})

		ginkgo.It("should refuse an inactive account with forbidden", func() {
			gomega.Expect(db.Model(admin).Update("is_active", false).Error).ToNot(gomega.HaveOccurred())

			_, err := service.Login(ctx, auth.LoginDTO{Username: "colombo_admin", Password: testutil.Password})

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.StatusCode).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(audit.kinds()).To(gomega.Equal([]action.Kind{action.FailedLogin}))
		})

		ginkgo.It("should reject missing fields before touching the directory", func() {
			_, err := service.Login(ctx, auth.LoginDTO{Username: "  "})

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.StatusCode).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(audit.entries).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("Authenticate", func() {
		var token string

		ginkgo.BeforeEach(func() {
			session, err := service.Login(ctx, auth.LoginDTO{Username: "colombo_admin", Password: testutil.Password})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			token = session.Token
		})

		ginkgo.It("should resolve a valid token to the stored account", func() {
			acc, err := service.Authenticate(ctx, token)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(acc.Actor().District).To(gomega.Equal("Colombo"))
		})

		ginkgo.It("should reject a token whose account was deleted", func() {
			gomega.Expect(db.Unscoped().Delete(&accountDatamodel.Account{}, admin.ID).Error).ToNot(gomega.HaveOccurred())

			_, err := service.Authenticate(ctx, token)
			gomega.Expect(err).To(gomega.Equal(internal.ErrUnauthenticated))
		})

		ginkgo.It("should reject a token whose account was deactivated", func() {
			gomega.Expect(db.Model(admin).Update("is_active", false).Error).ToNot(gomega.HaveOccurred())

			_, err := service.Authenticate(ctx, token)
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.StatusCode).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should reject an expired token", func() {
			clk.Advance(25 * time.Hour)

			_, err := service.Authenticate(ctx, token)
			gomega.Expect(err).To(gomega.Equal(internal.ErrTokenExpired))
		})

		ginkgo.It("should reject an empty token", func() {
			_, err := service.Authenticate(ctx, "")
			gomega.Expect(err).To(gomega.Equal(internal.ErrUnauthenticated))
		})
	})

	ginkgo.Describe("Handler", func() {
		var handler *auth.Handler

		ginkgo.BeforeEach(func() {
			handler = auth.NewHandler(transport.NewBaseHandler(testutil.Logger()), service, auth.CookieConfig{Name: "survey_token"})
		})

		login := func() *http.Cookie {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
				strings.NewReader(`{"username":"colombo_admin","password":"`+testutil.Password+`"}`))
			rec := httptest.NewRecorder()
			handler.Login(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

			cookies := rec.Result().Cookies()
			gomega.Expect(cookies).To(gomega.HaveLen(1))
			return cookies[0]
		}

		ginkgo.It("should set an HTTP-only lax session cookie on login", func() {
			cookie := login()

			gomega.Expect(cookie.Name).To(gomega.Equal("survey_token"))
			gomega.Expect(cookie.HttpOnly).To(gomega.BeTrue())
			gomega.Expect(cookie.SameSite).To(gomega.Equal(http.SameSiteLaxMode))
		})

		ginkgo.It("should let the cookie through the middleware and expose the actor", func() {
			cookie := login()

			var seen identity.Actor
			protected := handler.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = internal.ActorFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(seen.ID).To(gomega.Equal(admin.ID))
			gomega.Expect(seen.Role).To(gomega.Equal(identity.RoleDistrictAdmin))
		})

		ginkgo.It("should answer 401 without a session", func() {
			protected := handler.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ginkgo.Fail("handler must not run")
			}))

			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should clear the cookie and record LOGOUT on logout", func() {
			cookie := login()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			handler.OptionalAuth(http.HandlerFunc(handler.Logout)).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			cleared := rec.Result().Cookies()
			gomega.Expect(cleared).To(gomega.HaveLen(1))
			gomega.Expect(cleared[0].MaxAge).To(gomega.BeNumerically("<", 0))
			gomega.Expect(audit.kinds()).To(gomega.ContainElement(action.Logout))
		})
	})
})
