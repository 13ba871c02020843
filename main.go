package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	apihttp "gagetrack/internal/api/http"
	"gagetrack/internal/audit"
	"gagetrack/internal/auth"
	"gagetrack/internal/billing"
	calapp "gagetrack/internal/calibration/application"
	calrepo "gagetrack/internal/calibration/infrastructure/postgres"
	calhttp "gagetrack/internal/calibration/interfaces/http"
	devapp "gagetrack/internal/deviation/application"
	devrepo "gagetrack/internal/deviation/infrastructure/postgres"
	devhttp "gagetrack/internal/deviation/interfaces/http"
	gagesapp "gagetrack/internal/gages/application"
	gagesrepo "gagetrack/internal/gages/infrastructure/postgres"
	gageshttp "gagetrack/internal/gages/interfaces/http"
	"gagetrack/internal/observability/metrics"
	"gagetrack/internal/reminders"
	"gagetrack/internal/reminders/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	gageChecker := auth.NewGageChecker(db)
	auditRepo := audit.NewRepository(db)

	gageRepo := gagesrepo.NewGageRepository(db)
	deptRepo := gagesrepo.NewDepartmentRepository(db)
	checkoutRepo := gagesrepo.NewCheckoutRepository(db)
	recordRepo := calrepo.NewRecordRepository(db)
	measurementRepo := calrepo.NewMeasurementRepository(db)
	toleranceRepo := devrepo.NewRepository(db)
	subscriptionRepo := billing.NewRepository(db)

	entitlements, err := billing.NewEntitlements(subscriptionRepo, gageRepo)
	if err != nil {
		logger.Fatalf("entitlements error: %v", err)
	}

	gageService, err := gagesapp.NewService(gageRepo, deptRepo, checkoutRepo, recordRepo, entitlements,
		gagesapp.WithDueSoonWindow(cfg.DueSoonWindowDays))
	if err != nil {
		logger.Fatalf("gage service error: %v", err)
	}
	gageHandler, err := gageshttp.NewHandler(gageService, auditRepo)
	if err != nil {
		logger.Fatalf("gage handler error: %v", err)
	}

	deviationPolicies, err := devapp.LoadConfig()
	if err != nil {
		logger.Fatalf("deviation config error: %v", err)
	}
	deviationService, err := devapp.NewService(toleranceRepo, gageRepo)
	if err != nil {
		logger.Fatalf("deviation service error: %v", err)
	}
	deviationHandler, err := devhttp.NewHandler(deviationService, auditRepo)
	if err != nil {
		logger.Fatalf("deviation handler error: %v", err)
	}

	calibrationService, err := calapp.NewService(recordRepo, measurementRepo, gageRepo, deviationService, deviationPolicies)
	if err != nil {
		logger.Fatalf("calibration service error: %v", err)
	}
	calibrationHandler, err := calhttp.NewHandler(calibrationService, auditRepo)
	if err != nil {
		logger.Fatalf("calibration handler error: %v", err)
	}

	reminderChannel := buildReminderChannel(cfg, logger)
	scanner, err := reminders.NewScanner(gageRepo, deptRepo, reminderChannel, logger,
		reminders.WithWindowDays(cfg.ReminderWindowDays),
		reminders.WithDryRun(cfg.ReminderDryRun))
	if err != nil {
		logger.Fatalf("reminder scanner error: %v", err)
	}
	scheduler := reminders.NewScheduler(scanner, cfg.ReminderDailyAt, logger)
	go scheduler.Start(context.Background())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	exportGages := apihttp.NewExportGagesHandler(gageService)
	exportRecords := apihttp.NewExportRecordsHandler(recordRepo, gageChecker)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/gages", gageHandler)
	mux.Handle("/api/v1/gages/", gageHandler)
	mux.Handle("/api/v1/departments", gageHandler)
	mux.Handle("/api/v1/calibration-records", calibrationHandler)
	mux.Handle("/api/v1/calibration-records/", calibrationHandler)
	mux.Handle("/api/v1/measurement-groups", calibrationHandler)
	mux.Handle("/api/v1/measurement-groups/", calibrationHandler)
	mux.Handle("/api/v1/tolerance-records", deviationHandler)
	mux.Handle("/api/v1/tolerance-records/", deviationHandler)
	mux.Handle("/api/v1/dashboard", apihttp.NewDashboardHandler(gageService))
	mux.Handle("/api/v1/calendar", apihttp.NewCalendarHandler(gageService))
	mux.Handle("/api/v1/exports/gages.csv", exportGages)
	mux.Handle("/api/v1/exports/gages.pdf", exportGages)
	mux.Handle("/api/v1/exports/gages.xlsx", exportGages)
	mux.Handle("/api/v1/exports/calibration-records.csv", exportRecords)
	mux.Handle("/api/v1/exports/calibration-records.pdf", exportRecords)
	mux.Handle("/api/v1/exports/calibration-records.xlsx", exportRecords)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL         string
	HTTPAddr            string
	JWTSecret           string
	DueSoonWindowDays   int
	ReminderDailyAt     string
	ReminderWindowDays  int
	ReminderDryRun      bool
	ReminderShoutrrrURL string
	ReminderWebhookURL  string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		DueSoonWindowDays:   getenvIntDefault("DUE_SOON_WINDOW_DAYS", 0),
		ReminderDailyAt:     getenvDefault("REMINDER_DAILY_AT", "06:00"),
		ReminderWindowDays:  getenvIntDefault("REMINDER_WINDOW_DAYS", 0),
		ReminderDryRun:      getenvBoolDefault("REMINDER_DRY_RUN", false),
		ReminderShoutrrrURL: getenvDefault("REMINDER_SHOUTRRR_URL", ""),
		ReminderWebhookURL:  getenvDefault("REMINDER_WEBHOOK_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func buildReminderChannel(cfg config, logger *log.Logger) notify.Channel {
	var channels []notify.Channel
	if cfg.ReminderShoutrrrURL != "" {
		channel, err := notify.NewShoutrrrChannel(cfg.ReminderShoutrrrURL)
		if err != nil {
			logger.Fatalf("reminder shoutrrr error: %v", err)
		}
		channels = append(channels, channel)
	}
	if cfg.ReminderWebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.ReminderWebhookURL)
		if err != nil {
			logger.Fatalf("reminder webhook error: %v", err)
		}
		channels = append(channels, channel)
	}
	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	default:
		return notify.NewMultiChannel(channels...)
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
