// Command seed loads development fixtures into the database. Personal
// stallholder fields are encrypted when a field key is configured.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"stall-backend/internal/config"
	"stall-backend/internal/database"
	"stall-backend/internal/fieldcrypt"
	"stall-backend/internal/logging"
	"stall-backend/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "seed",
		Short:        "Development data tooling for the stall payment backend",
		SilenceUsage: true,
	}
	root.AddCommand(newLoadCmd(), newEncryptCmd())
	return root
}

func newLoadCmd() *cobra.Command {
	var (
		file string
		dsn  string
		key  string
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a YAML fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(config.EnvDevelopment, "info")

			fx, err := LoadFixture(file)
			if err != nil {
				return err
			}
			if dsn == "" {
				return fmt.Errorf("no database: pass --dsn or set DATABASE_DSN")
			}
			cipher, err := fieldcrypt.New(key)
			if err != nil {
				return err
			}
			seal := sealer(cipher, key != "")
			if key == "" {
				slog.Warn("no field key given, personal fields are stored in plaintext")
			}

			db := database.Init(&config.Config{AppEnv: config.EnvDevelopment, DatabaseDSN: dsn})
			return db.WithContext(cmd.Context()).Transaction(func(tx *gorm.DB) error {
				return apply(tx, fx, seal)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "fixtures/dev.yaml", "fixture file")
	cmd.Flags().StringVar(&dsn, "dsn", os.Getenv("DATABASE_DSN"), "postgres DSN (defaults to $DATABASE_DSN)")
	cmd.Flags().StringVar(&key, "key", os.Getenv("FIELD_ENCRYPTION_KEY"), "field encryption key")
	return cmd
}

func newEncryptCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "encrypt VALUE",
		Short: "Print the stored form of a personal field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cipher, err := fieldcrypt.New(key)
			if err != nil {
				return err
			}
			out, err := cipher.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", os.Getenv("FIELD_ENCRYPTION_KEY"), "field encryption key")
	return cmd
}

// sealer encrypts when a key is configured and passes values through
// otherwise.
func sealer(c *fieldcrypt.Cipher, keyed bool) func(string) (string, error) {
	if !keyed {
		return func(v string) (string, error) { return v, nil }
	}
	return c.Encrypt
}

// BuildStallholder maps a fixture row onto the stored model.
func BuildStallholder(s StallholderFixture, branchID uint, seal func(string) (string, error)) (*models.Stallholder, error) {
	sh := &models.Stallholder{
		BranchID:       branchID,
		PaymentStatus:  models.PaymentStatusPending,
		ContractStatus: models.ContractActive,
	}
	fields := []struct {
		dst *string
		src string
	}{
		{&sh.FullName, s.FullName},
		{&sh.BusinessName, s.BusinessName},
		{&sh.ContactNumber, s.ContactNumber},
		{&sh.Email, s.Email},
	}
	for _, f := range fields {
		v, err := seal(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return sh, nil
}

func apply(tx *gorm.DB, fx *Fixture, seal func(string) (string, error)) error {
	branchIDs := map[string]uint{}
	for _, b := range fx.Branches {
		branch := models.Branch{Name: b.Name, Address: b.Address, Phone: b.Phone}
		if err := tx.Where(models.Branch{Name: b.Name}).FirstOrCreate(&branch).Error; err != nil {
			return fmt.Errorf("branch %s: %w", b.Name, err)
		}
		branchIDs[b.Name] = branch.ID
	}

	for _, u := range fx.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := models.User{
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        u.Email,
			PasswordHash: string(hash),
			Role:         u.Role,
		}
		if u.Role == models.RoleBranchManager {
			id := branchIDs[u.Branch]
			user.BranchID = &id
		}
		if err := tx.Where(models.User{Email: u.Email}).FirstOrCreate(&user).Error; err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
		for _, b := range u.Branches {
			link := models.UserBranch{UserID: user.ID, BranchID: branchIDs[b]}
			if err := tx.Where(link).FirstOrCreate(&link).Error; err != nil {
				return fmt.Errorf("assign %s to %s: %w", u.Email, b, err)
			}
		}
	}

	stallholderIDs := map[string]*models.Stallholder{}
	stallIDs := map[string]uint{}
	for _, s := range fx.Stallholders {
		sh, err := BuildStallholder(s, branchIDs[s.Branch], seal)
		if err != nil {
			return err
		}
		if err := tx.Create(sh).Error; err != nil {
			return fmt.Errorf("stallholder %s: %w", s.Key, err)
		}
		stallholderIDs[s.Key] = sh

		if s.StallNumber != "" {
			stall := models.Stall{BranchID: sh.BranchID, StallNumber: s.StallNumber, StallholderID: &sh.ID, MonthlyRent: s.MonthlyRent}
			if err := tx.Create(&stall).Error; err != nil {
				return fmt.Errorf("stall %s: %w", s.StallNumber, err)
			}
			stallIDs[s.Key] = stall.ID
		}
	}

	for _, v := range fx.Violations {
		sh := stallholderIDs[v.Stallholder]
		violation := models.Violation{
			StallholderID: sh.ID,
			BranchID:      sh.BranchID,
			ViolationType: v.Type,
			Description:   v.Description,
			PenaltyAmount: v.PenaltyAmount,
			Status:        models.ViolationUnpaid,
			ReportedAt:    v.ReportedAt,
		}
		if id, ok := stallIDs[v.Stallholder]; ok {
			violation.StallID = &id
		}
		if violation.ReportedAt.IsZero() {
			violation.ReportedAt = tx.NowFunc()
		}
		if err := tx.Omit("Stallholder", "Branch", "Stall").Create(&violation).Error; err != nil {
			return fmt.Errorf("violation for %s: %w", v.Stallholder, err)
		}
	}

	slog.Info("fixture loaded",
		"branches", len(fx.Branches),
		"users", len(fx.Users),
		"stallholders", len(fx.Stallholders),
		"violations", len(fx.Violations),
	)
	return nil
}
