package backend

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mindfulmovement/service-session-go/internal/docstore"
	"github.com/mindfulmovement/service-session-go/internal/identity"
	"github.com/mindfulmovement/service-session-go/internal/localstate"
	"github.com/mindfulmovement/service-session-go/pkg/database"
)

// Config gathers everything the backend handle needs at startup.
type Config struct {
	Database  database.Config
	Token     identity.TokenConfig
	StateFile string
}

// ConfigFromEnv reads backend config from environment variables.
func ConfigFromEnv() Config {
	stateFile := os.Getenv("LOCAL_STATE_FILE")
	if stateFile == "" {
		stateFile = "./data/local_state.json"
	}
	return Config{
		Database:  database.ConfigFromEnv(),
		Token:     identity.TokenConfigFromEnv(),
		StateFile: stateFile,
	}
}

// Handle owns the process-wide connections to the identity provider and the
// document store. It is constructed exactly once at process start and
// injected into consumers; nothing reads it through package globals.
type Handle struct {
	DB       *sqlx.DB
	State    localstate.Store
	Identity *identity.Service
	Docs     docstore.Store
}

// Open connects the backing database, builds the identity provider and
// document store on top of it, and ensures their schemas.
func Open(cfg Config, logger *zap.SugaredLogger) (*Handle, error) {
	sqlDB, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	db := sqlx.NewDb(sqlDB, "postgres")

	state, err := localstate.NewFileStore(cfg.StateFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	tokens, err := identity.NewTokenIssuer(cfg.Token)
	if err != nil {
		db.Close()
		return nil, err
	}

	ids := identity.NewService(db, tokens, state, logger)
	docs := docstore.NewPostgresStore(db, cfg.Database.DSN, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ids.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure identity schema: %w", err)
	}
	if err := docs.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure docstore schema: %w", err)
	}

	return &Handle{DB: db, State: state, Identity: ids, Docs: docs}, nil
}

func (h *Handle) Close() error {
	return h.DB.Close()
}
