package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aokihara/eventboard/internal/app"
	"github.com/aokihara/eventboard/internal/logger"
	"github.com/aokihara/eventboard/internal/rabbit"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/notifier_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

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

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to connect to rabbit: %v", err)
		return
	}
	defer r.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	err = r.Consume(ctx, func(msg amqp.Delivery) {
		change := app.Change{}
		if err := json.Unmarshal(msg.Body, &change); err != nil {
			log.Errorf("failed to parse change message: %s", err)
			return
		}
		log.WithField("op", change.Op).WithField("eventId", change.EventID).
			WithField("ownerId", change.OwnerID).WithField("title", change.Title).
			Printf("event change delivered")
	})
	if err != nil {
		log.Errorf("failed to consume changes: %v", err)
	}
}
