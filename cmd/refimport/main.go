// Command refimport loads reference choreographies listed in a YAML
// manifest into the yogatracker database.
//
//	refimport -manifest references.yaml [-db path] [-dry-run]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/config"
	"github.com/aadiyog/yogatracker/internal/logger"
	"github.com/aadiyog/yogatracker/internal/store"
)

func main() {
	_ = godotenv.Load()

	manifestPath := flag.String("manifest", "", "YAML manifest listing the references to import")
	dbPath := flag.String("db", "", "database path (defaults to DB_PATH)")
	dryRun := flag.Bool("dry-run", false, "parse references without writing")
	flag.Parse()

	if *manifestPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log := logger.New(logger.Options{Production: cfg.Production()})
	defer log.Sync()

	if err := run(cfg, *manifestPath, *dryRun, log); err != nil {
		log.Error("import failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, manifestPath string, dryRun bool, log *zap.Logger) error {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	im := &Importer{
		exercises: st.Exercises(),
		opts:      choreography.Options{Facing: cfg.Engine.Facing, Logger: log},
		log:       log,
		dryRun:    dryRun,
	}
	results, err := im.Import(m)
	for _, r := range results {
		action := "updated"
		if r.Created {
			action = "created"
		}
		if dryRun {
			action = "checked"
		}
		fmt.Printf("%-24s %-8s frames=%d segments=%d dropped=%d\n", r.Name, action, r.Frames, r.Segments, r.Dropped)
	}
	return err
}
