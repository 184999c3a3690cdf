package main

import (
	"log"
	"time"

	config "github.com/anjiri1684/psych_admin/configs"
	"github.com/anjiri1684/psych_admin/database"
	"github.com/anjiri1684/psych_admin/handlers"
	"github.com/anjiri1684/psych_admin/jobs"
	"github.com/anjiri1684/psych_admin/notifications"
	"github.com/anjiri1684/psych_admin/routes"
	"github.com/anjiri1684/psych_admin/services"
	"github.com/anjiri1684/psych_admin/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()

	client, err := database.NewBackend(cfg)
	if err != nil {
		log.Fatalf("🔥 Failed to set up the backend: %v", err)
	}

	orderMode, err := services.ParseOrderMode(cfg.QuestionOrderMode)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		log.Println("⚠️ JWT_SECRET is not set; sessions will not survive a restart.")
		secret = []byte(uuid.NewString())
	}
	auth, err := services.NewAdminAuth(cfg.AdminEmail, cfg.AdminPassword, secret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("🔥 Failed to set up admin login: %v", err)
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Println("⚠️ ADMIN_EMAIL or ADMIN_PASSWORD is not set; nobody can log in.")
	}

	var uploader services.Uploader
	if cfg.CloudinaryURL != "" {
		cld, err := services.NewCloudinaryUploader(cfg.CloudinaryURL)
		if err != nil {
			log.Printf("⚠️ Cloudinary is misconfigured, reports will be streamed: %v", err)
		} else {
			uploader = cld
		}
	}

	hub := websocket.NewHub()
	go hub.Run()

	questions := services.NewQuestionService(client, orderMode)
	dashboard := services.NewDashboardService(client)
	h := &handlers.Handler{
		Questions:     questions,
		Lists:         services.NewListSync(questions, hub, cfg.DateLayout),
		Dashboard:     dashboard,
		Reports:       services.NewReportService(dashboard, nil, uploader, cfg.DateLayout),
		Auth:          auth,
		Hub:           hub,
		AppName:       cfg.AppName,
		DateLayout:    cfg.DateLayout,
		SecureCookies: cfg.SecureCookies,
	}

	sweeper := &jobs.OrphanSweeper{
		Questions:   questions,
		GracePeriod: cfg.OrphanGracePeriod,
		Cleanup:     cfg.OrphanCleanup,
		AlertEmail:  cfg.AdminEmail,
	}
	if mailer := notifications.NewBrevoMailer(cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName); mailer != nil {
		sweeper.Mailer = mailer
	}
	c := cron.New()
	if _, err := sweeper.Schedule(c, cfg.OrphanSweepSchedule); err != nil {
		log.Fatalf("🔥 Invalid ORPHAN_SWEEP_SCHEDULE %q: %v", cfg.OrphanSweepSchedule, err)
	}
	c.Start()
	defer c.Stop()
	log.Println("✅ Cron job for orphaned questions scheduled successfully.")

	app := fiber.New(fiber.Config{
		AppName:       cfg.AppName,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  2 * time.Minute,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: cfg.CORSOrigins != "*",
		MaxAge:           86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"clients": hub.Count(),
		})
	})

	routes.AuthRoutes(app, h)
	routes.AdminRoutes(app, h, secret)

	log.Printf("✅ Server is running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
