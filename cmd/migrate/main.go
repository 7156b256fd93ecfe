// Command migrate applies the schema and rewrites legacy job status values to
// their canonical names.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/dentallab-api/internal/config"
	"github.com/jwalitptl/dentallab-api/internal/repository/postgres"
	"github.com/jwalitptl/dentallab-api/pkg/logger"
)

func main() {
	skipStatuses := flag.Bool("skip-statuses", false, "only apply the schema")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.App.LogLevel),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     !cfg.IsProduction(),
	}).With("migrate")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLog.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		appLog.Fatal(err, "failed to apply schema")
	}
	appLog.Info("schema applied")

	if *skipStatuses {
		return
	}

	n, err := postgres.NormalizeLegacyStatuses(ctx, db)
	if err != nil {
		appLog.Fatal(err, "failed to normalize job statuses")
	}
	appLog.Info("job statuses normalized", "rows", n)
}
