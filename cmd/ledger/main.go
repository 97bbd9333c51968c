package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carecoins/internal/config"
	"carecoins/internal/database"
	"carecoins/internal/logging"
	"carecoins/internal/repository"
	"carecoins/internal/service"
	"carecoins/migrations"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	reconcileCmd := flag.NewFlagSet("reconcile", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: ledger_YYYYMMDD_HHMMSS.json)")

	// Reconcile flags
	reconcileFamily := reconcileCmd.Int64("family", 0, "Only check this family id (default: all families)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if _, err := db.RunMigrations(ctx, migrations.FS); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ledgerService := service.NewLedgerService(db, repository.NewLedgerRepository(db), repository.NewFamilyRepository(db))

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := handleExport(ctx, ledgerService, *exportOutput); err != nil {
			log.Fatalf("Export failed: %v", err)
		}

	case "reconcile":
		reconcileCmd.Parse(os.Args[2:])
		report, err := ledgerService.Reconcile(ctx, *reconcileFamily)
		if err != nil {
			log.Fatalf("Reconcile failed: %v", err)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(report)
		if !report.Consistent {
			log.WithField("mismatches", len(report.Mismatches)).Error("Ledger and balances disagree")
			os.Exit(2)
		}
		log.WithField("checked", report.Checked).Info("Ledger is consistent")

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, ledgerService *service.LedgerService, outputPath string) error {
	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("ledger_%s.json", timestamp)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := ledgerService.Export(ctx, file); err != nil {
		return err
	}

	fmt.Printf("Ledger exported to %s\n", outputPath)
	return file.Close()
}

func printUsage() {
	fmt.Println("CareCoins Ledger Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ledger export [options]       Export the coin ledger and balances to JSON")
	fmt.Println("  ledger reconcile [options]    Compare cached balances with the ledger")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: ledger_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Reconcile Options:")
	fmt.Println("  -family <id>      Only check one family")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./carecoins.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
