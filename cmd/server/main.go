package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atmbank/backend/internal/config"
	"github.com/atmbank/backend/internal/database"
	mW "github.com/atmbank/backend/internal/middleware"
	"github.com/atmbank/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("mail.host", "MAIL_HOST")
	viper.BindEnv("mail.port", "MAIL_PORT")
	viper.BindEnv("mail.sender", "MAIL_SENDER")
	viper.BindEnv("mail.password", "MAIL_PASSWORD")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.issuer", "JWT_ISSUER")
	viper.BindEnv("jwt.expiry_minutes", "JWT_EXPIRY_MINUTES")

	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using environment: %v", err)
	}

	// Fatal on missing mail/JWT configuration.
	cfg := config.Load()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	mailer := services.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Sender, cfg.Mail.Password)

	authService := services.NewAuthService(db, redisClient, mailer)
	transactionService := services.NewTransactionService(db, mailer)
	statementService := services.NewStatementService(db)
	adminService := services.NewAdminService(db)
	importService := services.NewImportService(db)

	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/account", func(r chi.Router) {
			r.Post("/register", authService.Register)
			r.Post("/login", authService.Login)
			r.Post("/verify-otp", authService.VerifyOTP)
			r.Post("/logout", authService.Logout)

			r.Group(func(r chi.Router) {
				r.Use(mW.AuthMiddleware)
				r.Use(mW.RequireRole("Admin"))

				r.Post("/add-role", authService.AddRole)
				r.Post("/assign-role", authService.AssignRole)
			})
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(mW.AuthMiddleware)
			r.Use(mW.RequireRole("User", "Admin"))

			r.Get("/balance", transactionService.GetBalance)
			r.Post("/credit", transactionService.PostCredit)
			r.Post("/debit", transactionService.PostDebit)
			r.Get("/history", statementService.GetHistory)
			r.Get("/pdf", statementService.GetPDF)
			r.Post("/reset-password", authService.ResetPassword)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mW.AuthMiddleware)
			r.Use(mW.RequireRole("Admin"))

			r.Get("/all-users", adminService.GetAllUsers)
			r.Post("/import", importService.ImportExcel)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
