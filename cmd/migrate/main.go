// Command migrate applies or rolls back the schema of the configured store.
//
//	migrate up|down
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/go-alumni-api/internal/config"
	"github.com/go-alumni-api/internal/infrastructure/sqldb"
	"github.com/go-alumni-api/internal/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	cfg, err := config.LoadStore()
	if err != nil {
		boot := logger.New("info", "")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)

	if err := sqldb.Migrate(cfg.StoreDriver, cfg.DatabaseURL, direction); err != nil {
		log.Fatal().Err(err).Str("direction", direction).Msg("migration failed")
	}
	log.Info().Str("driver", cfg.StoreDriver).Str("direction", direction).Msg("migration complete")
}
