package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"dayplan/internal/app"
	"dayplan/internal/drag"
	"dayplan/internal/hook"
	"dayplan/internal/logger"
	"dayplan/internal/notify"
	"dayplan/internal/storage"
	"dayplan/internal/storage/cache"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	cacheStore, err := cache.Open(ctx, config.Calendar.CachePath)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer cacheStore.Close()

	bridge, err := storage.New(afero.NewOsFs(), config.Calendar.Location, cacheStore)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	engine := drag.New(time.Duration(config.Drag.SnapMinutes) * time.Minute)
	calendar := app.New(bridge, engine, config.Notifier, notify.LogNotifier{}, hook.New(config.Hook))
	defer calendar.Close()

	report, err := calendar.Load(ctx)
	if err != nil {
		log.Errorf("failed to load calendars: %v", err)
		return
	}
	if err := report.Err(); err != nil {
		log.Warnf("some calendar files were skipped: %v", err)
	}

	log.Info("dayplan is running...")
	calendar.Scheduler.Run(ctx)
}
