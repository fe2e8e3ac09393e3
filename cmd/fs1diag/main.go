package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"fs1diag/internal"
	"fs1diag/internal/config"
	"fs1diag/internal/connectors"
	gmailconnector "fs1diag/internal/connectors/gmail"
	imapconnector "fs1diag/internal/connectors/imap"
	sheetsconnector "fs1diag/internal/connectors/sheets"
	"fs1diag/internal/listener"
	"fs1diag/internal/logger"
	"fs1diag/internal/pipeline"
	"fs1diag/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ingestor := pipeline.NewIngestor(db, cfg, log)

	cmd := os.Args[1]
	switch cmd {
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "path to a .csv, .xlsx or .eml export")
		inType := fs.String("type", "", "csv|xlsx|eml (default: from extension)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		report, err := ingestor.ImportFile(ctx, *inType, *input)
		finish(db, report, err)
	case "sheets:import":
		conn, err := sheetsconnector.NewConnector(ctx, cfg)
		must(err)
		values, err := conn.FetchValues(ctx)
		must(err)
		records, err := pipeline.RecordsFromValues(values)
		must(err)
		report, err := ingestor.Run(ctx, internal.OriginSheets, records)
		finish(db, report, err)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", connectors.ProviderIMAP, "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		query := fs.String("query", "from:zohoforms.com", "gmail search filter")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(ctx, cfg, *provider, *query)
		must(err)
		result, err := connectors.NewFetchService(db, cfg.RawMailDir, conn, log).FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap (default: all)")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 200, "max mails per run")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*messageID) != "" {
			if *provider == "" {
				must(fmt.Errorf("--provider is required with --messageId"))
			}
			report, err := ingestor.IngestByProviderMessageID(ctx, *provider, *messageID)
			finish(db, report, err)
			return
		}
		res, err := ingestor.ProcessPending(ctx, *batch, *provider)
		fmt.Printf("mail ingest mails=%d skipped=%d failed=%d\n", res.Mails, res.Skipped, res.Failed)
		if res.Report.RunID == "" {
			must(err)
			return
		}
		finish(db, res.Report, err)
	case "mail:listen":
		must(listener.NewService(db, cfg, log).Run(ctx))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "diagnostic_cases.xlsx"), "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		cases, err := db.ListCases()
		must(err)
		must(pipeline.ExportCasesToXLSX(cases, *out))
		fmt.Printf("exported %d cases to %s\n", len(cases), *out)
	case "export:review":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "review_queue.xlsx"), "output xlsx path")
		limit := fs.Int("limit", 1000, "max entries")
		_ = fs.Parse(os.Args[2:])
		review, err := db.ListReview(*limit)
		must(err)
		must(pipeline.ExportReviewToXLSX(review, *out))
		fmt.Printf("exported %d review entries to %s\n", len(review), *out)
	case "review:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 50, "max entries")
		_ = fs.Parse(os.Args[2:])
		review, err := db.ListReview(*limit)
		must(err)
		for _, r := range review {
			fmt.Printf("%s\tline=%d\t%s@%s\t%s\t%s\n", r.RunID, r.LineNo, r.HNumber, r.CreatedTime, r.Reason, r.Detail)
		}
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		show := fs.String("show", "", "print the full report of one run id")
		_ = fs.Parse(os.Args[2:])
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			if *show != "" {
				if r.ID == *show {
					fmt.Println(r.ReportJSON)
				}
				continue
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", r.ID, r.Origin, r.StartedAt, r.FinishedAt)
		}
	default:
		usage()
		os.Exit(1)
	}
}

// finish prints the run report and maps it to the exit status: 1 on a fatal
// error, 2 when rows were rejected or a batch rolled back.
func finish(db *storage.DB, report internal.RunReport, runErr error) {
	if report.RunID != "" {
		blob, err := json.MarshalIndent(report, "", "  ")
		must(err)
		fmt.Println(string(blob))
	}
	if runErr != nil {
		zap.L().Error("run failed", zap.Error(runErr))
		_ = db.Close()
		must(runErr)
	}
	if !report.Clean() {
		_ = db.Close()
		os.Exit(2)
	}
}

func makeConnector(ctx context.Context, cfg config.Config, provider, query string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case connectors.ProviderGmail:
		return gmailconnector.NewConnector(ctx, cfg, query)
	case connectors.ProviderIMAP:
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: fs1diag <command>")
	fmt.Println("commands:")
	fmt.Println("  import --input=export.csv|export.xlsx|entry.eml [--type=csv|xlsx|eml]")
	fmt.Println("  sheets:import")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50 [--query=...]")
	fmt.Println("  mail:ingest [--provider=gmail|imap] [--messageId=...] [--batch=200]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx [--out=./out/diagnostic_cases.xlsx]")
	fmt.Println("  export:review [--out=./out/review_queue.xlsx] [--limit=1000]")
	fmt.Println("  review:list [--limit=50]")
	fmt.Println("  runs:list [--limit=20] [--show=<run id>]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
