package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/api"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/config"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/database"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/dhis2"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/mapping"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/repository"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/source"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/trigger"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/pkg/logger"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back the last migration and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting facility sync server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if *rollback {
		if err := db.MigrateDown(cfg.Database.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to roll back migration")
		}
		return
	}

	// Run migrations
	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	// Seed mappings
	if cfg.Mapping.File != "" {
		mappings, err := mapping.LoadFile(cfg.Mapping.File)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Mapping.File).Msg("Failed to load mappings")
		}
		count, err := repos.Mapping.Upsert(context.Background(), mappings)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to store mappings")
		}
		log.Info().Int("mappings", count).Str("file", cfg.Mapping.File).Msg("Mappings seeded")
	}

	// External clients
	downloader := source.NewHTTPDownloader(source.Options{
		BaseURL:  cfg.Source.BaseURL,
		Username: cfg.Source.Username,
		Password: cfg.Source.Password,
		Timeout:  cfg.Source.Timeout,
	}, log)
	aggregate := dhis2.NewClient(cfg.DHIS2.URL, cfg.DHIS2.Timeout, log)

	// Initialize services
	services := service.NewServices(repos, downloader, aggregate, cfg, log)

	// Start download scheduler
	if cfg.Scheduler.AutoStart {
		services.Scheduler.Start(context.Background())
	}

	// Start periodic trigger
	tr := trigger.New(services.Sync, services.Collect, cfg.Trigger.SyncInterval, cfg.Trigger.CollectInterval, log)
	if cfg.Trigger.Enabled {
		tr.Start(context.Background())
	}

	// Initialize router
	router := api.NewRouter(services, db, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// A store failure in the download loop takes the process down so the
	// process supervisor can restart it against a healthy database
	exitCode := 0
	select {
	case <-quit:
	case err := <-services.Scheduler.Errors():
		log.Error().Err(err).Msg("Download scheduler failed")
		exitCode = 1
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop background work after the API stops accepting requests
	tr.Stop()
	services.Scheduler.Stop()

	log.Info().Msg("Server exited gracefully")
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
}
