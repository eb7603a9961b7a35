package storagebuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/aokihara/eventboard/internal/storage"
	boltstorage "github.com/aokihara/eventboard/internal/storage/bolt"
	memorystorage "github.com/aokihara/eventboard/internal/storage/memory"
	sqlstorage "github.com/aokihara/eventboard/internal/storage/sql"
)

type Config struct {
	StorageType string
	Database    sqlstorage.Config
	Bolt        boltstorage.Config
}

func New(config Config) (storage.Storage, error) {
	switch config.StorageType {
	case "memory":
		return memorystorage.New(), nil
	case "sql":
		s := sqlstorage.New(config.Database)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database %s: %w", config.Database.Database, err)
		}
		return s, nil
	case "bolt":
		s := boltstorage.New(config.Bolt)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to open bolt storage %s: %w", config.Bolt.Path, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %s", config.StorageType)
	}
}
