package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/pkg/logger"
)

var clearData bool

type seedUser struct {
	Email string
	Name  string
	Type  permission.PrincipalType
	Role  permission.Role
}

var seedUsers = []seedUser{
	{"owner@mail.com", "Olivia Owner", permission.PrincipalUser, permission.RoleOwner},
	{"coowner@mail.com", "Cody Co-Owner", permission.PrincipalUser, permission.RoleCoOwner},
	{"reviewer@mail.com", "Rita Reviewer", permission.PrincipalUser, permission.RoleMemberFull},
	{"member@mail.com", "Mike Member", permission.PrincipalUser, permission.RoleMemberRead},
	{"guest@mail.com", "Gina Guest", permission.PrincipalUser, permission.RoleGuest},
	{"admin@mail.com", "Ada Admin", permission.PrincipalAdmin, 0},
}

const seedOrganization = "Acme Documents"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample users, an organization and its memberships for development.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		deps, err := initializeDependencies(cfg, logger.LoggerWrapper())
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()
		db := deps.Gorm

		if clearData {
			if err := db.Exec(`TRUNCATE transition_logs, reassignment_records, letter_approvers, letters, records,
				cabinet_member_permissions, cabinets, space_invitations, spaces,
				organization_memberships, organizations, users RESTART IDENTITY CASCADE`).Error; err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		cost := cfg.Security.BCryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte("password"), cost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		ids := make(map[string]int64, len(seedUsers))
		for _, u := range seedUsers {
			id, err := ensureUser(db, u, string(hashed))
			if err != nil {
				log.Fatalf("failed to seed user %s: %v", u.Email, err)
			}
			ids[u.Email] = id
		}

		ownerID := ids[seedUsers[0].Email]
		var orgID int64
		if err := db.Raw("SELECT id FROM organizations WHERE name = ?", seedOrganization).Row().Scan(&orgID); err != nil {
			if err := db.Raw("INSERT INTO organizations (name, owner_id, created_at, updated_at) VALUES (?, ?, now(), now()) RETURNING id",
				seedOrganization, ownerID).Row().Scan(&orgID); err != nil {
				log.Fatalf("failed to insert organization: %v", err)
			}
			fmt.Println("Seeded organization:", seedOrganization)
		}

		for _, u := range seedUsers {
			if u.Role == 0 {
				continue
			}
			var exists int
			row := db.Raw("SELECT 1 FROM organization_memberships WHERE organization_id = ? AND user_id = ? AND status = 'active'", orgID, ids[u.Email]).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec(`INSERT INTO organization_memberships (organization_id, user_id, role, status, invited_by, created_at, updated_at)
				VALUES (?, ?, ?, 'active', ?, now(), now())`, orgID, ids[u.Email], u.Role.String(), ownerID).Error; err != nil {
				log.Fatalf("failed to add %s to organization: %v", u.Email, err)
			}
			fmt.Printf("Added %s as %s\n", u.Email, u.Role)
		}

		fmt.Println("Seed complete; every user logs in with password \"password\"")
	},
}

func ensureUser(db *gorm.DB, u seedUser, hash string) (int64, error) {
	var id int64
	if err := db.Raw("SELECT id FROM users WHERE email = ?", u.Email).Row().Scan(&id); err == nil {
		fmt.Println("user already exists:", u.Email)
		return id, nil
	}
	err := db.Raw(`INSERT INTO users (email, name, password_hash, type, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, true, now(), now()) RETURNING id`, u.Email, u.Name, hash, string(u.Type)).Row().Scan(&id)
	if err != nil {
		return 0, err
	}
	fmt.Println("Seeded user:", u.Email)
	return id, nil
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}
