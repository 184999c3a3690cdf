package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

func Config(key string) string {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
	return os.Getenv(key)
}

type Settings struct {
	AppName     string
	Port        string
	CORSOrigins string

	Backend         string
	SupabaseURL     string
	SupabaseAnonKey string
	BackendTimeout  time.Duration
	DatabaseURL     string
	AutoMigrate     bool

	JWTSecret     string
	AdminEmail    string
	AdminPassword string
	SessionTTL    time.Duration
	SecureCookies bool

	DateLayout        string
	QuestionOrderMode string

	OrphanSweepSchedule string
	OrphanCleanup       bool
	OrphanGracePeriod   time.Duration

	CloudinaryURL   string
	BrevoAPIKey     string
	EmailSender     string
	EmailSenderName string
}

// Placeholder values shipped in sample configs count as missing.
var placeholders = map[string]bool{
	"YOUR_SUPABASE_URL":      true,
	"YOUR_SUPABASE_ANON_KEY": true,
}

func Load() Settings {
	return Settings{
		AppName:     withDefault("APP_NAME", "Psych Test Admin"),
		Port:        withDefault("PORT", "8080"),
		CORSOrigins: withDefault("CORS_ORIGINS", "*"),

		Backend:         strings.ToLower(withDefault("BACKEND", "postgrest")),
		SupabaseURL:     withoutPlaceholder("SUPABASE_URL"),
		SupabaseAnonKey: withoutPlaceholder("SUPABASE_ANON_KEY"),
		BackendTimeout:  duration("BACKEND_TIMEOUT", 15*time.Second),
		DatabaseURL:     Config("DATABASE_URL"),
		AutoMigrate:     boolean("AUTO_MIGRATE", false),

		JWTSecret:     Config("JWT_SECRET"),
		AdminEmail:    Config("ADMIN_EMAIL"),
		AdminPassword: Config("ADMIN_PASSWORD"),
		SessionTTL:    duration("SESSION_TTL", 12*time.Hour),
		SecureCookies: boolean("SECURE_COOKIES", false),

		DateLayout:        withDefault("DATE_LAYOUT", "2006-01-02"),
		QuestionOrderMode: withDefault("QUESTION_ORDER_MODE", "append"),

		OrphanSweepSchedule: withDefault("ORPHAN_SWEEP_SCHEDULE", "*/10 * * * *"),
		OrphanCleanup:       boolean("ORPHAN_CLEANUP", false),
		OrphanGracePeriod:   duration("ORPHAN_GRACE_PERIOD", 5*time.Minute),

		CloudinaryURL:   Config("CLOUDINARY_URL"),
		BrevoAPIKey:     Config("BREVO_API_KEY"),
		EmailSender:     Config("EMAIL_SENDER"),
		EmailSenderName: Config("EMAIL_SENDER_NAME"),
	}
}

func withDefault(key, fallback string) string {
	if v := strings.TrimSpace(Config(key)); v != "" {
		return v
	}
	return fallback
}

func withoutPlaceholder(key string) string {
	v := strings.TrimSpace(Config(key))
	if placeholders[v] {
		return ""
	}
	return v
}

func duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func boolean(key string, fallback bool) bool {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
