// Command vaultforge builds Data Vault and dimensional warehouse models from
// the definitions stored in the metadata database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vaultforge/vaultforge/internal/builder"
	"github.com/vaultforge/vaultforge/internal/catalog"
	"github.com/vaultforge/vaultforge/internal/source"
	"github.com/vaultforge/vaultforge/pkg/config"
	"github.com/vaultforge/vaultforge/pkg/database"
	"github.com/vaultforge/vaultforge/pkg/logger"
)

const version = "1.0.0"

const usage = `Usage: vaultforge [-config <file>] <command> [name]

Commands:
  init-metadata             create the metadata schema and tables
  build-vault <name>        build one data vault model
  build-warehouse <name>    build one data warehouse model
  build-all-vaults          build every active vault model
  build-all-warehouses      build every active warehouse model
  list                      list all models and their last build status
`

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	log := logger.New("vaultforge", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, database.FromConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to connect to metadata database: %v", err)
	}
	defer db.Close()

	if err := run(ctx, args, cfg, db, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg *config.Config, db *database.PostgreSQL, log *logger.Logger) error {
	vaultRepo := catalog.NewVaultRepository(db, log)
	warehouseRepo := catalog.NewWarehouseRepository(db, log)
	processLog := catalog.NewProcessLog(db, log)
	sourceOpts := source.Options{
		MongoDatabase:   cfg.Source.MongoDatabase,
		MongoCollection: cfg.Source.MongoCollection,
	}

	vaultBuilder := builder.NewVaultBuilder(db, vaultRepo, processLog, log, sourceOpts)
	warehouseBuilder := builder.NewWarehouseBuilder(db, warehouseRepo, processLog, log, sourceOpts)

	command := args[0]
	switch command {
	case "init-metadata":
		if err := catalog.CreateTables(ctx, db); err != nil {
			return err
		}
		log.Info("Metadata schema is ready")
		return nil

	case "build-vault":
		if len(args) < 2 {
			return fmt.Errorf("build-vault requires a vault name")
		}
		return vaultBuilder.Build(ctx, args[1])

	case "build-warehouse":
		if len(args) < 2 {
			return fmt.Errorf("build-warehouse requires a warehouse name")
		}
		return warehouseBuilder.Build(ctx, args[1])

	case "build-all-vaults":
		return vaultBuilder.BuildAllActive(ctx)

	case "build-all-warehouses":
		return warehouseBuilder.BuildAllActive(ctx)

	case "list":
		return listModels(ctx, vaultRepo, warehouseRepo, log)

	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func listModels(ctx context.Context, vaultRepo *catalog.VaultRepository, warehouseRepo *catalog.WarehouseRepository, log *logger.Logger) error {
	vaults, err := vaultRepo.GetAllVaults(ctx)
	if err != nil {
		return err
	}
	warehouses, err := warehouseRepo.GetAllWarehouses(ctx)
	if err != nil {
		return err
	}

	log.Infof("%d vault models, %d warehouse models", len(vaults), len(warehouses))
	for _, m := range vaults {
		status := m.LastBuildStatus
		if status == "" {
			status = "never built"
		}
		log.Infof("vault %-30s active=%-5t %s -> %s  last build: %s",
			m.VaultName, m.Active, m.SourceDBEngine, m.TargetDBEngine, status)
	}
	for _, m := range warehouses {
		status := m.LastBuildStatus
		if status == "" {
			status = "never built"
		}
		log.Infof("warehouse %-26s active=%-5t %s -> %s  last build: %s",
			m.WarehouseName, m.Active, m.SourceDBEngine, m.TargetDBEngine, status)
	}
	return nil
}
