package auth_test

import (
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/auth"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("JWTTokenGenerator", func() {
	var (
		clk      *clock.Mock
		tokenGen *auth.JWTTokenGenerator
		actor    identity.Actor
	)

	ginkgo.BeforeEach(func() {
		clk = clock.NewMock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
		tokenGen = auth.NewJWTTokenGenerator("test-secret-that-is-long-enough-000", time.Hour, clk.Now)
		actor = identity.Actor{ID: 7, Username: "colombo_admin", Role: identity.RoleDistrictAdmin, District: "Colombo"}
	})

	ginkgo.It("should round-trip the account identity", func() {
		token, expiresAt, err := tokenGen.GenerateAccessToken(actor)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(expiresAt).To(gomega.Equal(clk.Now().Add(time.Hour)))

		claims, err := tokenGen.ValidateToken(token)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(claims.UserID).To(gomega.Equal(int64(7)))
		gomega.Expect(claims.Username).To(gomega.Equal("colombo_admin"))
		gomega.Expect(claims.Role).To(gomega.Equal("district_admin"))
	})

	ginkgo.It("should reject an expired token", func() {
		token, _, err := tokenGen.GenerateAccessToken(actor)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		clk.Advance(61 * time.Minute)

		_, err = tokenGen.ValidateToken(token)
		gomega.Expect(err).To(gomega.Equal(internal.ErrTokenExpired))
	})

	ginkgo.It("should reject a token signed with another secret", func() {
		other := auth.NewJWTTokenGenerator("another-secret-that-is-long-enough-0", time.Hour, clk.Now)
		token, _, err := other.GenerateAccessToken(actor)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		_, err = tokenGen.ValidateToken(token)
		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
	})

	ginkgo.It("should reject garbage", func() {
		_, err := tokenGen.ValidateToken("not-a-jwt")
		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
	})
})
