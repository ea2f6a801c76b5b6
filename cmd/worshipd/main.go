package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/worshipd/worshipd/internal/app"
	"github.com/worshipd/worshipd/internal/config"
)

func main() {
	configFlag := flag.String("config", "", "path to the config file")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	configPath := config.ResolvePath(*configFlag)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, configPath); errMigrate != nil {
			log.WithError(errMigrate).Fatal("migration failed")
		}
		os.Exit(0)
	}

	if errRun := app.RunServer(ctx, configPath); errRun != nil {
		log.WithError(errRun).Fatal("server exited")
	}
}
