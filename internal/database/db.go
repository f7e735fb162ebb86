package database

import (
	"log"
	"log/slog"
	"time"

	"stall-backend/internal/config"
	"stall-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// checkConstraints are added after AutoMigrate; gorm does not manage them.
var checkConstraints = []struct {
	table, name, expr string
}{
	{"payments", "chk_payments_amount_positive", "amount > 0"},
	{"payments", "chk_payments_status", "status IN ('pending','completed','declined')"},
	{"penalty_payments", "chk_penalty_payments_amount_positive", "amount_paid > 0"},
	{"violations", "chk_violations_status", "status IN ('unpaid','paid')"},
}

func Init(cfg *config.Config) *gorm.DB {
	logLevel := logger.Warn
	if !cfg.IsProduction() {
		logLevel = logger.Info
	}

	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger: logger.New(log.Default(), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}

	err = DB.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.UserBranch{},
		&models.Stallholder{},
		&models.Stall{},
		&models.Payment{},
		&models.Violation{},
		&models.PenaltyPayment{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	for _, cc := range checkConstraints {
		var exists bool
		DB.Raw(`
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.table_constraints
				WHERE table_name = ?
				AND constraint_name = ?
			)
		`, cc.table, cc.name).Scan(&exists)
		if exists {
			continue
		}

		if err := DB.Exec("ALTER TABLE " + cc.table + " ADD CONSTRAINT " + cc.name + " CHECK (" + cc.expr + ")").Error; err != nil {
			slog.Warn("check constraint not added", "table", cc.table, "constraint", cc.name, "error", err)
		} else {
			slog.Info("check constraint added", "table", cc.table, "constraint", cc.name)
		}
	}

	slog.Info("database connected, migrations complete")
	return DB
}
