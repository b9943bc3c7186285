package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/survey-management/api"
	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/app"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/testutil"
	"github.com/frahmantamala/survey-management/internal/transport/rest"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type client struct {
	router http.Handler
	cookie *http.Cookie
}

func (c *client) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, rest.APIPrefix+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(gomega.Succeed())
	}
	return rec, out
}

func (c *client) login(username, password string) *httptest.ResponseRecorder {
	rec, _ := c.do(http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password})
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "survey_token" && ck.Value != "" {
			c.cookie = ck
		}
	}
	return rec
}

func newApp(security func(*internal.SecurityConfig)) *app.App {
	db, err := testutil.OpenDB()
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	sqlDB, err := db.DB()
	gomega.Expect(err).ToNot(gomega.HaveOccurred())

	cfg := &internal.Config{}
	cfg.Security.JWTSecret = "router-test-secret-that-is-long-enough"
	cfg.Security.BCryptCost = 4
	cfg.Security.LoginRatePerMinute = 1000
	cfg.Security.LoginBurst = 1000
	if security != nil {
		security(&cfg.Security)
	}
	cfg.ApplyDefaults()

	colombo, err := time.LoadLocation("Asia/Colombo")
	gomega.Expect(err).ToNot(gomega.HaveOccurred())

	_, err = testutil.SeedAccount(db, "root", identity.RoleSuperAdmin, "", "")
	gomega.Expect(err).ToNot(gomega.HaveOccurred())

	return app.New(app.Dependencies{
		Config: cfg,
		DB:     db,
		SQLX:   sqlx.NewDb(sqlDB, "sqlite3"),
		Clock:  clock.NewMock(time.Date(2024, 3, 10, 9, 0, 0, 0, colombo)),
		Logger: testutil.Logger(),
	})
}

func errorMessage(body map[string]any) string {
	msg, _ := body["message"].(string)
	return msg
}

var _ = ginkgo.Describe("Router", func() {
	var (
		a      *app.App
		router *chi.Mux
	)

	ginkgo.BeforeEach(func() {
		a = newApp(nil)
		router = a.Router(api.Handler(), nil)
	})

	ginkgo.Describe("public routes", func() {
		ginkgo.It("answers ping and health without a session", func() {
			c := &client{router: router}

			rec, body := c.do(http.MethodGet, "/ping", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(body["message"]).To(gomega.Equal("pong"))

			rec, _ = c.do(http.MethodGet, "/health", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("serves the openapi document", func() {
			req := httptest.NewRequest(http.MethodGet, rest.OpenAPIPath, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("openapi: 3.0.3"))
		})

		ginkgo.It("rejects protected routes without a session", func() {
			c := &client{router: router}
			rec, _ := c.do(http.MethodGet, "/users", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("Colombo account hierarchy", func() {
		var root *client

		ginkgo.BeforeEach(func() {
			root = &client{router: router}
			gomega.Expect(root.login("root", testutil.Password).Code).To(gomega.Equal(http.StatusOK))

			rec, body := root.do(http.MethodPost, "/users", map[string]string{
				"username": "colombo_admin",
				"password": "district-pass-1",
				"role":     string(identity.RoleDistrictAdmin),
				"district": "Colombo",
			})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated), rec.Body.String())
			user := body["user"].(map[string]any)
			gomega.Expect(user["id"]).ToNot(gomega.BeZero())
		})

		ginkgo.It("refuses a second district admin for the same district", func() {
			rec, body := root.do(http.MethodPost, "/users", map[string]string{
				"username": "colombo_admin_2",
				"password": "district-pass-2",
				"role":     string(identity.RoleDistrictAdmin),
				"district": "Colombo",
			})

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(errorMessage(body)).To(gomega.ContainSubstring("colombo_admin"))
		})

		ginkgo.It("lets the district admin create division users who cannot create accounts", func() {
			district := &client{router: router}
			gomega.Expect(district.login("colombo_admin", "district-pass-1").Code).To(gomega.Equal(http.StatusOK))

			rec, _ := district.do(http.MethodPost, "/users", map[string]string{
				"username": "dehiwala_user",
				"password": "division-pass-1",
				"role":     string(identity.RoleDivisionUser),
				"district": "Colombo",
				"division": "Dehiwala",
			})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated), rec.Body.String())

			division := &client{router: router}
			gomega.Expect(division.login("dehiwala_user", "division-pass-1").Code).To(gomega.Equal(http.StatusOK))

			rec, _ = division.do(http.MethodPost, "/users", map[string]string{
				"username": "sneaky",
				"password": "sneaky-pass-1",
				"role":     string(identity.RoleDivisionUser),
				"district": "Colombo",
				"division": "Dehiwala",
			})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("keeps district admins out of the submission route and notifies them of new submissions", func() {
			district := &client{router: router}
			gomega.Expect(district.login("colombo_admin", "district-pass-1").Code).To(gomega.Equal(http.StatusOK))

			rec, _ := district.do(http.MethodPost, "/submissions", map[string]any{
				"sub_division":   "Ward 3",
				"classification": []string{"roads"},
			})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))

			rec, _ = district.do(http.MethodPost, "/users", map[string]string{
				"username": "dehiwala_user",
				"password": "division-pass-1",
				"role":     string(identity.RoleDivisionUser),
				"district": "Colombo",
				"division": "Dehiwala",
			})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))

			division := &client{router: router}
			gomega.Expect(division.login("dehiwala_user", "division-pass-1").Code).To(gomega.Equal(http.StatusOK))

			rec, body := division.do(http.MethodPost, "/submissions", map[string]any{
				"sub_division":   "Ward 3",
				"classification": []string{"roads"},
				"proposals":      []map[string]any{{"title": "Fix drain", "estimated_cost": 1200}},
			})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated), rec.Body.String())
			sub := body["submission"].(map[string]any)
			gomega.Expect(sub["district"]).To(gomega.Equal("Colombo"))

			rec, body = district.do(http.MethodGet, "/notifications?category=submission", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(body["total"]).To(gomega.BeNumerically("==", 1))

			rec, body = district.do(http.MethodGet, "/notifications/unread-count", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(body["unread_count"]).To(gomega.BeNumerically(">=", 1))
		})

		ginkgo.It("narrows activity logs to the district admin's own district", func() {
			district := &client{router: router}
			gomega.Expect(district.login("colombo_admin", "district-pass-1").Code).To(gomega.Equal(http.StatusOK))

			rec, body := district.do(http.MethodGet, "/activity-logs?district=Kandy", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK), rec.Body.String())

			logs := body["logs"].([]any)
			gomega.Expect(logs).ToNot(gomega.BeEmpty())
			for _, l := range logs {
				gomega.Expect(l.(map[string]any)["district"]).To(gomega.Equal("Colombo"))
			}
		})

		ginkgo.It("restricts pending deletion to super admins", func() {
			district := &client{router: router}
			gomega.Expect(district.login("colombo_admin", "district-pass-1").Code).To(gomega.Equal(http.StatusOK))

			rec, _ := district.do(http.MethodGet, "/activity-logs/pending-deletion", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))

			rec, _ = root.do(http.MethodGet, "/activity-logs/pending-deletion", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("folds repeated failed logins into one escalating security notification", func() {
			anon := &client{router: router}
			for i := 0; i < 3; i++ {
				gomega.Expect(anon.login("colombo_admin", "wrong-password").Code).To(gomega.Equal(http.StatusUnauthorized))
			}

			rec, body := root.do(http.MethodGet, "/notifications?category=security", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

			items := body["notifications"].([]any)
			gomega.Expect(items).To(gomega.HaveLen(1))
			item := items[0].(map[string]any)
			gomega.Expect(item["priority"]).To(gomega.Equal("high"))
			gomega.Expect(item["details"].(map[string]any)["count"]).To(gomega.BeNumerically("==", 3))
		})

		ginkgo.It("clears the session on logout", func() {
			rec, _ := root.do(http.MethodPost, "/auth/logout", nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

			var cleared bool
			for _, ck := range rec.Result().Cookies() {
				if ck.Name == "survey_token" && ck.MaxAge < 0 {
					cleared = true
				}
			}
			gomega.Expect(cleared).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("login rate limit", func() {
		ginkgo.It("answers 429 once the burst is spent", func() {
			limited := newApp(func(s *internal.SecurityConfig) {
				s.LoginRatePerMinute = 1
				s.LoginBurst = 2
			})
			c := &client{router: limited.Router(nil, nil)}

			gomega.Expect(c.login("root", "wrong-password").Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(c.login("root", "wrong-password").Code).To(gomega.Equal(http.StatusUnauthorized))

			rec := c.login("root", testutil.Password)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusTooManyRequests))
			gomega.Expect(rec.Header().Get("Retry-After")).ToNot(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("openapi document", func() {
		ginkgo.It("describes every API route the router serves", func() {
			doc, err := api.Load(context.Background())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			var missing []string
			err = chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
				if !strings.HasPrefix(route, rest.APIPrefix) {
					return nil
				}
				path := strings.TrimPrefix(route, rest.APIPrefix)
				if len(path) > 1 {
					path = strings.TrimSuffix(path, "/")
				}
				item := doc.Paths.Find(path)
				if item == nil || item.GetOperation(method) == nil {
					missing = append(missing, fmt.Sprintf("%s %s", method, path))
				}
				return nil
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(missing).To(gomega.BeEmpty())
		})
	})
})
