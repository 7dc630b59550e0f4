package database

import (
	"fmt"
	"log"

	"github.com/dukasoft/tillpoint-api/internal/config"
	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Warn

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Println("Successfully connected to PostgreSQL database")
	return db, nil
}

// AutoMigrate runs GORM auto-migration for all entities
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		// User-related entities
		&entity.User{},
		&entity.Role{},
		&entity.Permission{},

		// Catalog
		&entity.Product{},

		// Ledger entities
		&entity.WorkPeriod{},
		&entity.CashPayout{},
		&entity.Order{},
		&entity.OrderItem{},
		&entity.Receipt{},
		&entity.Payment{},
		&entity.OverrideGrant{},

		// Reports
		&entity.ReportSnapshot{},
		&entity.ZSequence{},

		// System entities
		&entity.AuditEntry{},
		&entity.SideEffectTask{},
		&entity.IdempotencyKey{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// SeedDefaultData seeds the database with default roles, permissions, users
// and the Z report sequence row
func SeedDefaultData(db *gorm.DB) error {
	log.Println("Seeding default data...")

	permissions := []entity.Permission{
		{Name: "open-period", GuardName: "web"},
		{Name: "close-period", GuardName: "web"},
		{Name: "record-payout", GuardName: "web"},
		{Name: "create-receipt", GuardName: "web"},
		{Name: "settle-receipt", GuardName: "web"},
		{Name: "void-receipt", GuardName: "web"},
		{Name: "grant-override", GuardName: "web"},
		{Name: "view-reports", GuardName: "web"},
		{Name: "view-audit", GuardName: "web"},
		{Name: "manage-products", GuardName: "web"},
	}

	for _, p := range permissions {
		var existing entity.Permission
		if err := db.Where("name = ?", p.Name).First(&existing).Error; err == gorm.ErrRecordNotFound {
			if err := db.Create(&p).Error; err != nil {
				return fmt.Errorf("failed to seed permission %s: %w", p.Name, err)
			}
		}
	}

	rolePermissions := map[string][]string{
		"cashier":    {"create-receipt", "settle-receipt"},
		"supervisor": {"create-receipt", "settle-receipt", "void-receipt", "grant-override", "view-reports"},
		"manager":    {"open-period", "close-period", "record-payout", "create-receipt", "settle-receipt", "void-receipt", "grant-override", "view-reports", "view-audit", "manage-products"},
		"admin":      {"open-period", "close-period", "record-payout", "create-receipt", "settle-receipt", "void-receipt", "grant-override", "view-reports", "view-audit", "manage-products"},
	}

	for roleName, permNames := range rolePermissions {
		var role entity.Role
		if err := db.Where("name = ?", roleName).First(&role).Error; err == gorm.ErrRecordNotFound {
			role = entity.Role{Name: roleName, GuardName: "web"}
			if err := db.Create(&role).Error; err != nil {
				return fmt.Errorf("failed to seed role %s: %w", roleName, err)
			}
		}

		var perms []entity.Permission
		if err := db.Where("name IN ?", permNames).Find(&perms).Error; err != nil {
			return err
		}
		if err := db.Model(&role).Association("Permissions").Replace(perms); err != nil {
			return fmt.Errorf("failed to assign permissions to role %s: %w", roleName, err)
		}
	}

	// Default admin user
	var adminUser entity.User
	if err := db.Where("email = ?", "admin@tillpoint.local").First(&adminUser).Error; err == gorm.ErrRecordNotFound {
		hashed, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		adminUser = entity.User{
			ID:        uuid.New(),
			FirstName: "System",
			LastName:  "Admin",
			Username:  "admin",
			Email:     "admin@tillpoint.local",
			Password:  string(hashed),
		}
		if err := db.Create(&adminUser).Error; err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}

		var adminRole entity.Role
		if err := db.Where("name = ?", "admin").First(&adminRole).Error; err != nil {
			return err
		}
		if err := db.Model(&adminUser).Association("Roles").Append(&adminRole); err != nil {
			return err
		}
	}

	// Z report sequence row: single row, id 1
	var seq entity.ZSequence
	if err := db.First(&seq, "id = ?", 1).Error; err == gorm.ErrRecordNotFound {
		if err := db.Create(&entity.ZSequence{ID: 1, Value: 0}).Error; err != nil {
			return fmt.Errorf("failed to seed z sequence: %w", err)
		}
	}

	log.Println("Default data seeded successfully")
	return nil
}
