package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aokihara/eventboard/internal/app"
	"github.com/aokihara/eventboard/internal/auth"
	"github.com/aokihara/eventboard/internal/feed"
	"github.com/aokihara/eventboard/internal/logger"
	"github.com/aokihara/eventboard/internal/rabbit"
	internalhttp "github.com/aokihara/eventboard/internal/server/http"
	"github.com/aokihara/eventboard/internal/storage"
	"github.com/aokihara/eventboard/internal/storagebuilder"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
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

	// .env is optional; absence is not an error.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env")
	}

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

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	server, stor := buildServer(config)

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			log.Error("failed to stop http server: " + err.Error())
		}
	}()

	log.Info("eventboard is running...")

	if err := server.Start(ctx); err != nil {
		log.Error("failed to start http server: " + err.Error())
		cancel()
		closeStorage(stor)
		os.Exit(1) //nolint:gocritic
	}
	closeStorage(stor)
}

// buildServer wires storage, auth, the live feed and the optional change
// queue. A failed storage build degrades to an error-page server instead of
// exiting.
func buildServer(config Config) (*internalhttp.Server, storage.Storage) {
	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to build storage: %v", err)
		return internalhttp.NewServer(config.HTTPServer, nil, nil, nil, err), nil
	}

	hub := feed.NewHub(stor)
	notifiers := []app.Notifier{hub}

	if config.Rabbit.Enabled {
		provider := rabbit.New(config.Rabbit)
		if err := provider.Connect(); err != nil {
			log.Errorf("failed to connect to rabbit, change queue disabled: %v", err)
		} else {
			notifiers = append(notifiers, rabbit.NewChangePublisher(provider))
		}
	}

	application := app.New(stor, notifiers...)
	authService := auth.New(config.Auth, stor)
	return internalhttp.NewServer(config.HTTPServer, application, authService, hub, nil), stor
}

func closeStorage(stor storage.Storage) {
	if stor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()
	if err := stor.Close(ctx); err != nil {
		log.Errorf("failed to close storage: %v", err)
	}
}
