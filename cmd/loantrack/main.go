package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/loanxp/loantrack/internal/config"
	"github.com/loanxp/loantrack/internal/db"
	"github.com/loanxp/loantrack/internal/exceptions"
	"github.com/loanxp/loantrack/internal/export"
	"github.com/loanxp/loantrack/internal/extract"
	"github.com/loanxp/loantrack/internal/ingestion"
	"github.com/loanxp/loantrack/internal/linkage"
	"github.com/loanxp/loantrack/internal/metrics"
	"github.com/loanxp/loantrack/internal/repository"
	"github.com/loanxp/loantrack/internal/rules"
	"github.com/loanxp/loantrack/internal/verification"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

const usage = `usage: loantrack <command> [flags]

commands:
  ingest    ingest a document file into the tracking store
  verify    run rule packs against a loan
  resolve   resolve an open exception
  dismiss   dismiss an open exception
  autofix   apply an exception's suggested auto-fix
  stats     print exception statistics
  export    write the exception report workbook
  migrate   apply database migrations and exit
`

type app struct {
	ingestion    *ingestion.Service
	verification *verification.Service
	exceptions   *exceptions.Manager
	report       *export.ReportService
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if command == "migrate" {
		if err := db.RunMigrations(cfg.Database); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		return
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	a := newApp(conn, cfg.TenantID)

	var runErr error
	switch command {
	case "ingest":
		runErr = a.runIngest(ctx, args)
	case "verify":
		runErr = a.runVerify(ctx, args)
	case "resolve":
		runErr = a.runResolve(ctx, args)
	case "dismiss":
		runErr = a.runDismiss(ctx, args)
	case "autofix":
		runErr = a.runAutoFix(ctx, args)
	case "stats":
		runErr = a.runStats(ctx)
	case "export":
		runErr = a.runExport(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if runErr != nil {
		log.Fatalf("%s failed: %v", command, runErr)
	}
}

func newApp(conn *db.Connection, tenantID string) *app {
	recordRepo := repository.NewPostgresTrackingRecordRepository(conn.Pool)
	commitmentRepo := repository.NewPostgresCommitmentRepository(conn.Pool)
	documentRepo := repository.NewPostgresDocumentRepository(conn.Pool)
	exceptionRepo := repository.NewPostgresExceptionRepository(conn.Pool)

	m := metrics.New()
	extractor := extract.New()
	matcher := linkage.NewMatcher(recordRepo)
	consolidator := linkage.NewConsolidator(recordRepo, documentRepo, matcher, tenantID)
	linker := linkage.NewCommitmentLinker(recordRepo, commitmentRepo, extractor)
	manager := exceptions.NewManager(exceptionRepo, documentRepo, m)

	return &app{
		ingestion:    ingestion.NewService(commitmentRepo, extractor, matcher, consolidator, linker, m),
		verification: verification.NewService(recordRepo, documentRepo, rules.NewEngine(), manager),
		exceptions:   manager,
		report:       export.NewReportService(exceptionRepo),
	}
}

func (a *app) runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	source := fs.String("source", "", "source type: commitment, purchase_advice, loan_data or documents")
	file := fs.String("file", "", "path to the JSON document")
	sourceFileID := fs.String("source-file-id", "", "staging file identifier")
	fs.Parse(args)

	if *source == "" || *file == "" {
		return fmt.Errorf("-source and -file are required")
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", *file, err)
	}
	var doc jsondoc.Doc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", *file, err)
	}

	result, err := a.ingestion.ProcessDocument(ctx, doc, *source, *sourceFileID)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (a *app) runVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	loan := fs.String("loan", "", "xpLoanNumber to verify")
	packs := fs.String("packs", "", "comma-separated rule packs (default: all)")
	fs.Parse(args)

	if *loan == "" {
		return fmt.Errorf("-loan is required")
	}

	var packList []string
	if *packs != "" {
		packList = strings.Split(*packs, ",")
	}

	result, err := a.verification.VerifyLoan(ctx, *loan, packList)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (a *app) runResolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	id := fs.String("id", "", "exception id")
	by := fs.String("by", "", "who is resolving")
	notes := fs.String("notes", "", "resolution notes")
	fs.Parse(args)

	if *id == "" || *by == "" {
		return fmt.Errorf("-id and -by are required")
	}

	exception, err := a.exceptions.Resolve(ctx, *id, *by, *notes)
	if err != nil {
		return err
	}
	return printJSON(exception)
}

func (a *app) runDismiss(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dismiss", flag.ExitOnError)
	id := fs.String("id", "", "exception id")
	by := fs.String("by", "", "who is dismissing")
	notes := fs.String("notes", "", "dismissal notes")
	fs.Parse(args)

	if *id == "" || *by == "" {
		return fmt.Errorf("-id and -by are required")
	}

	exception, err := a.exceptions.Dismiss(ctx, *id, *by, *notes)
	if err != nil {
		return err
	}
	return printJSON(exception)
}

func (a *app) runAutoFix(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("autofix", flag.ExitOnError)
	id := fs.String("id", "", "exception id")
	by := fs.String("by", "", "who is applying the fix")
	fs.Parse(args)

	if *id == "" || *by == "" {
		return fmt.Errorf("-id and -by are required")
	}

	result, err := a.exceptions.ApplyAutoFix(ctx, *id, *by)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (a *app) runStats(ctx context.Context) error {
	stats, err := a.exceptions.GetStats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func (a *app) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "exceptions.xlsx", "output workbook path")
	fs.Parse(args)

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *out, err)
	}
	defer f.Close()

	if err := a.report.WriteExceptionReport(ctx, f); err != nil {
		return err
	}
	log.Printf("Exception report written to %s", *out)
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
