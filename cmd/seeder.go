package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/frahmantamala/survey-management/internal/account"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/spf13/cobra"
)

var (
	seedUsername string
	seedPassword string
	seedFullName string
	seedDemo     bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the first super admin",
	Long:  `Create the first super admin account, and optionally a demo district admin and division user for Colombo.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		deps, err := initializeDependencies(ctx)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.DB.Close()

		if seedPassword == "" {
			log.Fatal("--password is required")
		}

		root, created, err := deps.App.Accounts.Bootstrap(ctx, seedUsername, seedPassword, seedFullName)
		if err != nil {
			log.Fatalf("failed to seed super admin: %v", err)
		}
		if created {
			fmt.Println("Seeded super admin:", root.Username)
		} else {
			fmt.Println("super admin already exists:", root.Username)
		}

		if !seedDemo {
			return
		}

		actor := root.Actor()
		demo := []account.CreateAccountDTO{
			{Username: "colombo_admin", Password: seedPassword, FullName: "Colombo District Admin", Role: string(identity.RoleDistrictAdmin), District: "Colombo"},
			{Username: "dehiwala_user", Password: seedPassword, FullName: "Dehiwala Division User", Role: string(identity.RoleDivisionUser), District: "Colombo", Division: "Dehiwala"},
		}
		for _, dto := range demo {
			existing, err := deps.App.Accounts.FindByUsername(ctx, dto.Username)
			if err != nil {
				log.Fatalf("failed to look up %s: %v", dto.Username, err)
			}
			if existing != nil {
				fmt.Println("demo account already exists:", dto.Username)
				continue
			}
			if _, err := deps.App.Accounts.Create(ctx, actor, dto); err != nil {
				log.Fatalf("failed to seed %s: %v", dto.Username, err)
			}
			fmt.Println("Seeded demo account:", dto.Username)
		}
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedUsername, "username", "superadmin", "super admin username")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "password for every seeded account")
	seedCmd.Flags().StringVar(&seedFullName, "full-name", "Super Admin", "super admin display name")
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "also seed a Colombo district admin and division user")
}
