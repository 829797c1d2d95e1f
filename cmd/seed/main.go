// Command seed loads development fixtures into the configured database.
// Without -fixtures it seeds an admin (admin/adminpassword), a regular user
// (user/userpassword) and the test_client OAuth2 client.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/aussiebroadwan/identity/internal/identity/app"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

func main() {
	fixtures := flag.String("fixtures", "", "optional YAML or JSON fixture file")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := slogx.New(slogx.Config{
		Service: "identity-seed",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	fx := app.DefaultFixtures()
	if *fixtures != "" {
		if fx, err = app.LoadFixtures(*fixtures); err != nil {
			log.Fatalf("failed to load fixtures: %v", err)
		}
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	ctx := context.Background()
	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	if err := st.ApplyMigrations(); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	res, err := app.Seed(ctx, st, fx, logger)
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	logger.Info("seed complete",
		"users_created", res.UsersCreated,
		"users_skipped", res.UsersSkipped,
		"clients_created", res.ClientsCreated,
		"clients_skipped", res.ClientsSkipped,
	)
}
