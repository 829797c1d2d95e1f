// Command migrate applies or rolls back the schema of the configured
// database (DATABASE_DRIVER, DATABASE_URL).
//
//	migrate -direction up
//	migrate -direction down
package main

import (
	"context"
	"flag"
	"log"

	"github.com/aussiebroadwan/identity/internal/identity/app"
	"github.com/aussiebroadwan/identity/internal/identity/store/sqlstore"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	dir, err := sqlstore.ParseDirection(*direction)
	if err != nil {
		log.Fatalf("invalid direction: %v", err)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := slogx.New(slogx.Config{
		Service: "identity-migrate",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	st, err := app.OpenStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(dir); err != nil {
		log.Fatalf("migration %s failed: %v", dir, err)
	}
	logger.Info("migrations applied", "direction", dir, "driver", st.Dialect())
}
