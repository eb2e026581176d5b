package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"user_permissions", "refresh_sessions", "trusted_devices", "otp_challenges", "members", "tenant_subscription_features", "tenant_subscriptions", "users", "tenants"} {
				if _, err := db.Exec("DELETE FROM " + table); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		// Tenant
		var tenantID int64
		err = db.Get(&tenantID, "SELECT id FROM tenants WHERE slug = $1", "downtown-gym")
		if err != nil {
			if err := db.Get(&tenantID,
				"INSERT INTO tenants (name, slug, created_at, updated_at) VALUES ($1, $2, now(), now()) RETURNING id",
				"Downtown Gym", "downtown-gym"); err != nil {
				log.Fatalf("failed to insert tenant: %v", err)
			}
			fmt.Println("Seeded tenant: downtown-gym")
		}

		// Users: one platform owner, one tenant admin, one staff
		users := []struct {
			Email     string
			Name      string
			RoleLevel int
			TenantID  *int64
		}{
			{"owner@clubops.dev", "Platform Owner", 1, nil},
			{"admin@downtown-gym.dev", "Gym Admin", 2, &tenantID},
			{"staff@downtown-gym.dev", "Gym Staff", 3, &tenantID},
		}

		userIDs := map[string]int64{}
		for _, u := range users {
			var id int64
			err := db.Get(&id, "SELECT id FROM users WHERE email = $1", u.Email)
			if err != nil {
				if err := db.Get(&id,
					"INSERT INTO users (tenant_id, email, name, password_hash, role_level, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, true, now(), now()) RETURNING id",
					u.TenantID, u.Email, u.Name, string(hash), u.RoleLevel); err != nil {
					log.Fatalf("failed to insert user %s: %v", u.Email, err)
				}
				fmt.Println("Seeded user:", u.Email)
			}
			userIDs[u.Email] = id
		}

		// Explicit grant: staff may also read billing
		staffID := userIDs["staff@downtown-gym.dev"]
		var exists int
		err = db.Get(&exists, "SELECT 1 FROM user_permissions WHERE user_id = $1 AND resource = $2 AND action = $3", staffID, "billing", "read")
		if err != nil {
			if _, err := db.Exec(
				"INSERT INTO user_permissions (user_id, resource, action, granted_by, created_at) VALUES ($1, $2, $3, $4, now())",
				staffID, "billing", "read", userIDs["admin@downtown-gym.dev"]); err != nil {
				log.Fatalf("failed to grant billing:read to staff: %v", err)
			}
			fmt.Println("Granted billing:read to staff user")
		}

		// Active subscription with the members and billing modules
		var subID int64
		err = db.Get(&subID, "SELECT id FROM tenant_subscriptions WHERE tenant_id = $1", tenantID)
		if err != nil {
			if err := db.Get(&subID,
				"INSERT INTO tenant_subscriptions (tenant_id, status, created_at, updated_at) VALUES ($1, 'ACTIVE', now(), now()) RETURNING id",
				tenantID); err != nil {
				log.Fatalf("failed to insert subscription: %v", err)
			}
			fmt.Println("Seeded ACTIVE subscription for tenant")
		}

		for _, feature := range []string{"members", "billing", "sessions"} {
			var exists int
			err := db.Get(&exists, "SELECT 1 FROM tenant_subscription_features WHERE subscription_id = $1 AND feature = $2", subID, feature)
			if err == nil {
				continue
			}
			if _, err := db.Exec(
				"INSERT INTO tenant_subscription_features (subscription_id, feature, created_at) VALUES ($1, $2, now())",
				subID, feature); err != nil {
				log.Fatalf("failed to insert subscription feature %s: %v", feature, err)
			}
			fmt.Println("Enabled module:", feature)
		}

		// A couple of members to browse
		memberEmails := []struct {
			Email string
			Name  string
		}{
			{"alice@mail.com", "Alice Johnson"},
			{"bob@mail.com", "Bob Smith"},
		}
		for _, m := range memberEmails {
			var exists int
			err := db.Get(&exists, "SELECT 1 FROM members WHERE tenant_id = $1 AND email = $2", tenantID, m.Email)
			if err == nil {
				continue
			}
			if _, err := db.Exec(
				"INSERT INTO members (tenant_id, email, full_name, status, joined_at, created_at, updated_at) VALUES ($1, $2, $3, 'active', now(), now(), now())",
				tenantID, m.Email, m.Name); err != nil {
				log.Fatalf("failed to insert member %s: %v", m.Email, err)
			}
			fmt.Println("Seeded member:", m.Email)
		}

		fmt.Println("Seeding complete. All seeded accounts use password:", password)
	},
}
