package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"google.golang.org/api/option"

	"github.com/zombor/receipt-sorter/internal/extraction"
	"github.com/zombor/receipt-sorter/internal/ledger"
	"github.com/zombor/receipt-sorter/internal/oracle"
	"github.com/zombor/receipt-sorter/internal/placement"
	"github.com/zombor/receipt-sorter/internal/receipt"
	"github.com/zombor/receipt-sorter/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-sorter")
	var (
		sourcePath     = fs.StringLong("source", "./inbox", "Folder of receipts to sort")
		outputPath     = fs.StringLong("output", "./sorted", "Output root for currency folders and ledgers")
		dbPath         = fs.StringLong("db", "receipt-sorter.db", "Processed-document index file path")
		threshold      = fs.IntLong("threshold", extraction.DefaultThreshold, "Confidence below which receipts go to review (0-100)")
		currencies     = fs.StringLong("currencies", "CAD,USD", "Comma separated currency codes expected in the source folder")
		homeCurrency   = fs.StringLong("ambiguous-dollar-currency", "CAD", "Currency assumed for a bare $ (empty disables the rule)")
		oracleType     = fs.StringLong("oracle", "gemini", "Oracle type: 'gemini', 'ollama' or 'anthropic'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llama3.1", "Ollama model name")
		anthropicKey   = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel = fs.StringLong("anthropic-model", "", "Anthropic model name")
		workers        = fs.IntLong("workers", 1, "Documents processed at once")
		oracleTimeout  = fs.DurationLong("oracle-timeout", 60*time.Second, "Timeout for each oracle call")
		ocrLang        = fs.StringLong("ocr-lang", "eng", "Comma separated Tesseract languages")
		serve          = fs.BoolLong("serve", "Run the HTTP API instead of a batch run")
		port           = fs.IntLong("port", 8080, "HTTP server port")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		sheetID        = fs.StringLong("sheet-id", "", "Google Sheets spreadsheet to mirror ledger rows into (optional)")
		sheetCreds     = fs.StringLong("sheets-credentials", "", "Service account credentials file for the Sheets mirror")
		reprocess      = fs.BoolLong("reprocess", "Process documents even if their content was already sorted")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat      = fs.StringLong("log-format", "text", "Log format: text or json")
		_              = fs.StringLong("config", "", "Config file (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_SORTER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if *threshold < 0 || *threshold > 100 {
		slog.Error("Threshold must be between 0 and 100", "threshold", *threshold)
		os.Exit(1)
	}
	if info, err := os.Stat(*sourcePath); err != nil || !info.IsDir() {
		slog.Error("Source folder is not readable", "path", *sourcePath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize oracle based on type
	var o oracle.Oracle
	switch *oracleType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini oracle...", "model", *geminiModel)
		o, err = oracle.NewGemini(ctx, apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama oracle...", "url", *ollamaURL, "model", *ollamaModel)
		o, err = oracle.NewOllama(*ollamaURL, *ollamaModel)
	case "anthropic":
		apiKey := *anthropicKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		slog.Info("Initializing Anthropic oracle...", "model", *anthropicModel)
		o, err = oracle.NewAnthropic("", apiKey, *anthropicModel)
	default:
		slog.Error("Invalid oracle type", "type", *oracleType, "valid", "gemini, ollama or anthropic")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize oracle", "type", *oracleType, "error", err)
		os.Exit(1)
	}
	defer o.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "source", *sourcePath)
	store, err := receipt.NewLocalStorage(*sourcePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	placer, err := placement.NewEngine(*outputPath, logger)
	if err != nil {
		slog.Error("Failed to initialize output folder", "path", *outputPath, "error", err)
		os.Exit(1)
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(logger)}
	if *sheetID != "" {
		var clientOpts []option.ClientOption
		if *sheetCreds != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(*sheetCreds))
		}
		mirror, err := ledger.NewSheetsMirror(ctx, *sheetID, logger, clientOpts...)
		if err != nil {
			slog.Error("Failed to initialize Google Sheets mirror", "error", err)
			os.Exit(1)
		}
		slog.Info("Mirroring ledgers to Google Sheets", "spreadsheet", *sheetID)
		ledgerOpts = append(ledgerOpts, ledger.WithMirror(mirror))
	}

	stages := receipt.Stages{
		Acquirer: scanning.NewAcquirer(
			scanning.NewTesseract(scanning.RenderDPI, splitList(*ocrLang)...),
			scanning.WithAcquirerLogger(logger),
		),
		Extractor: extraction.NewFieldExtractor(o,
			extraction.WithHomeCurrency(*homeCurrency),
			extraction.WithExtractTimeout(*oracleTimeout),
			extraction.WithExtractLogger(logger),
		),
		Classifier: extraction.NewClassifier(o, *threshold, *oracleTimeout, logger),
		Placer:     placer,
		Ledger:     ledger.NewEngine(*outputPath, ledgerOpts...),
	}

	// Initialize service
	receiptService := receipt.NewService(db, store, stages,
		receipt.WithWorkers(*workers),
		receipt.WithReprocess(*reprocess),
		receipt.WithCurrencies(splitList(*currencies)...),
		receipt.WithServiceLogger(logger),
	)

	if *serve {
		runServer(ctx, receiptService, *port, receipt.BasicAuth{Username: *authUser, Password: *authPass})
		return
	}

	slog.Info("Sorting receipts", "source", *sourcePath, "output", *outputPath, "operations_log", filepath.Join(*outputPath, placement.LogFile))
	run, err := receiptService.ProcessFolder(ctx)
	if err != nil {
		slog.Error("Failed to process source folder", "error", err)
		os.Exit(1)
	}

	summary, err := receiptService.Summary()
	if err != nil {
		slog.Warn("Failed to summarize ledgers", "error", err)
	}
	receipt.WriteSummary(os.Stdout, run, summary)
}

func runServer(ctx context.Context, service *receipt.Service, port int, auth receipt.BasicAuth) {
	server := receipt.NewServer(service, auth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if auth.Username != "" || auth.Password != "" {
		slog.Info("Basic auth enabled", "user", auth.Username)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
