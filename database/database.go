package database

import (
	"fmt"
	"log"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/anjiri1684/psych_admin/backend/gormstore"
	"github.com/anjiri1684/psych_admin/backend/memstore"
	"github.com/anjiri1684/psych_admin/backend/postgrest"
	config "github.com/anjiri1684/psych_admin/configs"
	"github.com/anjiri1684/psych_admin/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: false,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	fmt.Println("✅ Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Profile{},
		&models.Question{},
		&models.Option{},
		&models.Result{},
	)
	if err != nil {
		return err
	}
	fmt.Println("✅ Database migration successful")
	return nil
}

// NewBackend picks the store named by BACKEND. A postgrest backend without
// URL or key comes back as backend.Unconfigured rather than an error, so the
// dashboard can still start and explain what is missing.
func NewBackend(cfg config.Settings) (backend.Client, error) {
	switch cfg.Backend {
	case "postgrest", "supabase":
		client, err := postgrest.New(postgrest.Config{
			URL:     cfg.SupabaseURL,
			APIKey:  cfg.SupabaseAnonKey,
			Timeout: cfg.BackendTimeout,
		})
		if err == backend.ErrUnconfigured {
			log.Println("⚠️ SUPABASE_URL and SUPABASE_ANON_KEY are not set; the dashboard runs without a backend.")
			return backend.Unconfigured{}, nil
		}
		if err != nil {
			return nil, err
		}
		return client, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("BACKEND=postgres requires DATABASE_URL")
		}
		db, err := ConnectDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := Migrate(db); err != nil {
				return nil, err
			}
		}
		return gormstore.New(db), nil
	case "memory":
		log.Println("⚠️ Using the in-memory backend; data is lost on restart.")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown BACKEND %q", cfg.Backend)
}
