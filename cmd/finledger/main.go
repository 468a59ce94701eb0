package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/budget"
	"github.com/rumor-ml/commons.systems/finledger/internal/categorize"
	"github.com/rumor-ml/commons.systems/finledger/internal/config"
	"github.com/rumor-ml/commons.systems/finledger/internal/currency"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/importer"
	"github.com/rumor-ml/commons.systems/finledger/internal/parsers/bankcsv"
	"github.com/rumor-ml/commons.systems/finledger/internal/rates"
	"github.com/rumor-ml/commons.systems/finledger/internal/registry"
	"github.com/rumor-ml/commons.systems/finledger/internal/report"
	"github.com/rumor-ml/commons.systems/finledger/internal/scanner"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
	"github.com/rumor-ml/commons.systems/finledger/internal/transfer"
	"github.com/rumor-ml/commons.systems/finledger/internal/ui"
	"github.com/rumor-ml/commons.systems/finledger/internal/validate"
)

const (
	version = "0.1.0"
)

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Core CLI flags
	configFile = flag.String("config", "", "Config file (finledger.yaml)")
	inputDir   = flag.String("input", "", "Input directory containing statements (required)")
	userID     = flag.String("user", "default", "User whose ledger receives the import")
	sourceName = flag.String("source", "", "Override the source derived from the directory layout")
	dryRun     = flag.Bool("dry-run", false, "Show what would be imported without writing")
	verbose    = flag.Bool("verbose", false, "Show detailed import logs")

	// Storage and categorization flags
	dbFile    = flag.String("db", "", "SQLite database file (default: in-memory)")
	rulesFile = flag.String("rules", "", "Category rules file (default: embedded rules)")

	// Reporting flags
	baseCurrency = flag.String("base", "", "Settlement currency for budgets and transfers")
	reportFile   = flag.String("report", "", "Run report JSON file (default: stdout)")
	showBudgets  = flag.Bool("budgets", false, "Include budget progress in the report")
	reconcile    = flag.Bool("transfers", false, "Include transfer reconciliation in the report")
)

// defaultCategories seeds a fresh ledger. The two transfer markers are
// required for pairing; the rest give the matchers something to hit.
var defaultCategories = []domain.Category{
	{Name: domain.TransferOutCategory, Type: domain.TypeExpense},
	{Name: domain.TransferInCategory, Type: domain.TypeIncome},
	{Name: "Groceries", Type: domain.TypeExpense},
	{Name: "Cafes", Type: domain.TypeExpense},
	{Name: "Transport", Type: domain.TypeExpense},
	{Name: "Health", Type: domain.TypeExpense},
	{Name: "Cash", Type: domain.TypeExpense},
	{Name: "Salary", Type: domain.TypeIncome},
}

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `finledger - Bank statement importer and ledger

Usage:
  finledger [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import all statements into a SQLite ledger
  finledger -input ~/statements -db ledger.db

  # Preview without writing
  finledger -input ~/statements -db ledger.db -dry-run

  # Import, then report budgets and transfer pairs
  finledger -input ~/statements -db ledger.db -budgets -transfers -report run.json

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("finledger version %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *inputDir == "" && cfg.Import.Dir == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file with flag overrides. Flags win.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if *inputDir != "" {
		cfg.Import.Dir = *inputDir
	}
	if *dbFile != "" {
		cfg.Database.Path = *dbFile
	}
	if *rulesFile != "" {
		cfg.Rules.Path = *rulesFile
	}
	if *baseCurrency != "" {
		cfg.Currency.Base = *baseCurrency
	}
	if *reportFile != "" {
		cfg.Import.ReportPath = *reportFile
	}
	return cfg, nil
}

// ledgerStore is the full persistence surface the CLI needs.
type ledgerStore interface {
	store.LedgerStore
	store.CategoryStore
	store.BudgetStore
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	ui.Header("Importing Statements")
	ui.Step(1, 4, "Scanning %s", cfg.Import.Dir)

	files, err := scanner.New(cfg.Import.Dir).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan directory %s: %w", cfg.Import.Dir, err)
	}
	ui.Success("Found %d statement files", len(files))
	if *verbose {
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  - %s (source: %s)\n", f.Path, f.Metadata.Source())
		}
	}
	if len(files) == 0 && !*dryRun {
		return fmt.Errorf("no statement files found in %s (supported: .qif, .csv, .txt, .ofx, .qfx)", cfg.Import.Dir)
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := seedCategories(ctx, st); err != nil {
		return err
	}

	reg, err := registry.New()
	if err != nil {
		return fmt.Errorf("failed to create parser registry: %w", err)
	}
	for _, m := range cfg.Import.CSVMappings {
		p, err := bankcsv.NewParser(m)
		if err != nil {
			return fmt.Errorf("invalid csv mapping %q: %w", m.Name, err)
		}
		if err := reg.Register(p); err != nil {
			return fmt.Errorf("failed to register csv mapping %q: %w", m.Name, err)
		}
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Registered parsers: %v\n", reg.ListParsers())
	}

	engine, err := loadRules(cfg)
	if err != nil {
		return err
	}

	imp := importer.New(reg, st,
		importer.WithCategorizer(categorize.NewService(engine, st, st)))

	runReport := &report.Report{
		GeneratedAt: time.Now(),
		User:        *userID,
	}

	ui.Step(2, 4, "Importing %d files", len(files))
	for _, file := range files {
		runReport.Imports = append(runReport.Imports, importOne(ctx, imp, file))
	}

	var imported, duplicates, failed int
	for _, fi := range runReport.Imports {
		imported += fi.Imported
		duplicates += fi.Duplicates
		if fi.Error != "" {
			failed++
		}
	}
	if *dryRun {
		ui.Info("Dry run: %d new, %d duplicates, nothing written", imported, duplicates)
	} else {
		ui.Success("Imported %d transactions (%d duplicates skipped)", imported, duplicates)
	}
	if failed > 0 {
		ui.Warning("%d files failed to import", failed)
	}

	conv := currency.NewConverter(rateProvider(cfg))
	now := time.Now()
	since := now.AddDate(-10, 0, 0)

	ui.Step(3, 4, "Validating ledger")
	txns, err := st.GetTransactionsByDateRange(ctx, *userID, since, now)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	cats, err := st.ListCategories(ctx, *userID)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	runReport.Validation = validate.ValidateLedger(txns, cats)
	if !runReport.Validation.Valid() {
		ui.Warning("Ledger validation found %d errors", len(runReport.Validation.Errors))
		if *verbose {
			for _, e := range runReport.Validation.Errors {
				fmt.Fprintf(os.Stderr, "  - %s %s [%s]: %s\n", e.Entity, e.ID, e.Field, e.Message)
			}
		}
	} else {
		ui.Success("Validation passed (%d warnings)", len(runReport.Validation.Warnings))
	}

	if *showBudgets {
		budgets, err := st.ListBudgets(ctx, *userID)
		if err != nil {
			return fmt.Errorf("failed to load budgets: %w", err)
		}
		for _, b := range budgets {
			check := validate.ValidateBudget(b, cats)
			runReport.Validation.Warnings = append(runReport.Validation.Warnings, check.Warnings...)
			if !check.Valid() {
				runReport.Validation.Errors = append(runReport.Validation.Errors, check.Errors...)
				ui.Warning("Budget %s failed validation, skipping", b.ID)
				continue
			}
			progress, err := budget.Progress(ctx, b, txns, conv, now)
			if err != nil {
				return fmt.Errorf("budget %s: %w", b.ID, err)
			}
			runReport.Budgets = append(runReport.Budgets, progress)
			if progress.ShouldAlert {
				ui.Warning("Budget %s at %d%%", b.ID, progress.Percentage)
			}
		}
	}

	if *reconcile {
		transfers, err := transfer.NewEngine(st, st, conv, cfg.Currency.Base).
			Reconcile(ctx, *userID, since, now)
		if err != nil {
			return fmt.Errorf("transfer reconciliation: %w", err)
		}
		runReport.AddTransfers(transfers)
		ui.Info("%d transfer pairs, %d unlinked transfers",
			len(transfers.Pairs), len(transfers.Unlinked))
	}

	ui.Step(4, 4, "Writing report")
	if err := report.WriteToFile(runReport, cfg.Import.ReportPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if cfg.Import.ReportPath != "" {
		ui.Success("Report written to %s", cfg.Import.ReportPath)
	}
	return nil
}

// importOne never aborts the run; a bad file is reported and skipped.
func importOne(ctx context.Context, imp *importer.Importer, file scanner.ScanResult) report.FileImport {
	fi := report.FileImport{File: file.Path}
	source := file.Metadata.Source()
	if *sourceName != "" {
		source = *sourceName
	}

	if *dryRun {
		preview, err := imp.PreviewFile(ctx, file.Path, *userID, source)
		if err != nil {
			fi.Error = err.Error()
			return fi
		}
		fi.Parser = preview.Parser
		fi.Imported = len(preview.New)
		fi.Duplicates = len(preview.Duplicates)
		fi.Skipped = preview.Skipped
		for _, w := range preview.Warnings {
			ui.Warning("%s: %s", file.Path, w)
		}
		return fi
	}

	result, err := imp.ImportFile(ctx, file.Path, *userID, source, "")
	if err != nil {
		ui.Warning("%s: %v", file.Path, err)
		fi.Error = err.Error()
		return fi
	}
	fi.Imported = result.Imported
	fi.Duplicates = result.Duplicates
	fi.Skipped = result.Skipped
	if *verbose {
		fmt.Fprintf(os.Stderr, "  %s: %d imported, %d duplicates, %d skipped\n",
			file.Path, result.Imported, result.Duplicates, result.Skipped)
	}
	return fi
}

func openStore(cfg *config.Config) (ledgerStore, func(), error) {
	if cfg.Database.Path == "" {
		if *verbose {
			fmt.Fprintln(os.Stderr, "No database file given, using in-memory store")
		}
		return store.NewMemory(), func() {}, nil
	}
	s, err := store.NewSQLite(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	return s, func() { s.Close() }, nil
}

// seedCategories creates the default category set on first run.
func seedCategories(ctx context.Context, st ledgerStore) error {
	existing, err := st.ListCategories(ctx, *userID)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, c := range defaultCategories {
		if _, err := st.CreateCategory(ctx, c, *userID); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.Name, err)
		}
	}
	return nil
}

func loadRules(cfg *config.Config) (*categorize.Engine, error) {
	if cfg.Rules.Path != "" {
		engine, err := categorize.LoadFromFile(cfg.Rules.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules file: %w", err)
		}
		return engine, nil
	}
	engine, err := categorize.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	return engine, nil
}

func rateProvider(cfg *config.Config) currency.Provider {
	if cfg.Currency.ProviderURL == "" {
		return nil
	}
	return rates.NewClient(cfg.Currency.ProviderURL, time.Duration(cfg.Currency.ProviderTimeout))
}
