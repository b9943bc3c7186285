// Package testutil opens in-memory databases and seeds rows for package tests.
package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/frahmantamala/survey-management/internal/core/datamodel"
	accountDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/account"
	submissionDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/submission"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const Password = "password123"

// OpenDB returns a migrated sqlite database held on a single connection so
// every query sees the same in-memory schema.
func OpenDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(datamodel.Models()...); err != nil {
		return nil, err
	}
	return db, nil
}

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var passwordHash string

func hash() string {
	if passwordHash == "" {
		h, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		passwordHash = string(h)
	}
	return passwordHash
}

// SeedAccount inserts an active account whose password is Password.
func SeedAccount(db *gorm.DB, username string, role identity.Role, district, division string) (*accountDatamodel.Account, error) {
	row := &accountDatamodel.Account{
		Username:     username,
		PasswordHash: hash(),
		FullName:     username,
		Role:         string(role),
		IsActive:     true,
	}
	if district != "" {
		row.District = &district
	}
	if division != "" {
		row.Division = &division
	}
	if err := db.Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func ActorOf(row *accountDatamodel.Account) identity.Actor {
	a := identity.Actor{ID: row.ID, Username: row.Username, Role: identity.Role(row.Role)}
	if row.District != nil {
		a.District = *row.District
	}
	if row.Division != nil {
		a.Division = *row.Division
	}
	return a
}

// SeedSubmissions inserts n submissions by account at the given instant.
func SeedSubmissions(db *gorm.DB, by *accountDatamodel.Account, n int, at time.Time) error {
	rows := make([]*submissionDatamodel.Submission, 0, n)
	for i := 0; i < n; i++ {
		row := &submissionDatamodel.Submission{
			SubmittedBy: by.ID,
			CreatedAt:   at.UTC(),
			UpdatedAt:   at.UTC(),
		}
		if by.District != nil {
			row.District = *by.District
		}
		if by.Division != nil {
			row.Division = *by.Division
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	return db.CreateInBatches(rows, 100).Error
}
