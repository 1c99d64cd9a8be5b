package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/saturnino-fabrica-de-software/estoque/internal/analytics"
	"github.com/saturnino-fabrica-de-software/estoque/internal/backend"
	"github.com/saturnino-fabrica-de-software/estoque/internal/config"
	"github.com/saturnino-fabrica-de-software/estoque/internal/dashboard"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	weeks           int
	top             int
	excludeCanceled bool
	asJSON          bool
}

// report is the JSON form of the printed tables.
type report struct {
	Weekly         analytics.WeeklySeries     `json:"weekly"`
	TopProducts    []analytics.ProductRow     `json:"top_products"`
	InventoryCodes []analytics.InventorySlice `json:"inventory_codes"`
}

func run() error {
	backendURL := flag.String("backend", "", "Inventory backend URL (default: BACKEND_URL)")
	token := flag.String("token", os.Getenv("BACKEND_TOKEN"), "Backend bearer token (default: BACKEND_TOKEN)")
	email := flag.String("email", "", "Log in with this email when no token is given (administrator)")
	password := flag.String("password", os.Getenv("BACKEND_PASSWORD"), "Password for -email (default: BACKEND_PASSWORD)")
	var opts options
	flag.IntVar(&opts.weeks, "weeks", 8, "Most recent weeks to print, 0 for all")
	flag.IntVar(&opts.top, "top", analytics.DefaultTopN, "Number of products to rank")
	flag.BoolVar(&opts.excludeCanceled, "exclude-canceled", false, "Ignore canceled transactions")
	flag.BoolVar(&opts.asJSON, "json", false, "Print JSON instead of tables")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *backendURL == "" {
		*backendURL = cfg.BackendURL
	}

	// stdout carries the report
	logger := config.NewLoggerTo(cfg.Environment, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(backend.Config{
		BaseURL:  *backendURL,
		Timeout:  cfg.BackendTimeout,
		PageSize: cfg.BackendPageSize,
	}, logger)

	tok, err := resolveToken(ctx, client, *token, *email, *password)
	if err != nil {
		return err
	}

	svc := dashboard.NewService(client, nil, 0, logger)
	r, err := build(ctx, svc, tok, opts)
	if err != nil {
		return err
	}
	logger.Debug("report built",
		slog.String("backend", *backendURL),
		slog.Int("weeks", len(r.Weekly.Points)),
		slog.Int("skipped", r.Weekly.Skipped),
		slog.Int("products", len(r.TopProducts)),
	)

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return printReport(os.Stdout, r)
}

// tokenSource is implemented by backend.Client.
type tokenSource interface {
	Login(ctx context.Context, email, password string) (string, error)
}

func resolveToken(ctx context.Context, auth tokenSource, token, email, password string) (string, error) {
	if token != "" {
		if backend.TokenExpired(token, time.Now()) {
			return "", errors.New("token has expired, log in again")
		}
		return token, nil
	}
	if email == "" || password == "" {
		return "", errors.New("either -token or -email and -password are required")
	}
	tok, err := auth.Login(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return tok, nil
}

// source is implemented by dashboard.Service.
type source interface {
	Weekly(ctx context.Context, token string, q dashboard.Query) (analytics.WeeklySeries, error)
	TopProducts(ctx context.Context, token string, q dashboard.Query) ([]analytics.ProductRow, error)
	InventoryCodes(ctx context.Context, token string, q dashboard.Query) ([]analytics.InventorySlice, error)
}

func build(ctx context.Context, svc source, token string, opts options) (report, error) {
	q := dashboard.Query{
		Direction:       domain.DirectionBoth,
		Limit:           opts.weeks,
		TopN:            opts.top,
		ExcludeCanceled: opts.excludeCanceled,
	}

	var (
		r   report
		err error
	)
	if r.Weekly, err = svc.Weekly(ctx, token, q); err != nil {
		return report{}, fmt.Errorf("weekly: %w", err)
	}
	if r.TopProducts, err = svc.TopProducts(ctx, token, q); err != nil {
		return report{}, fmt.Errorf("top products: %w", err)
	}
	if r.InventoryCodes, err = svc.InventoryCodes(ctx, token, q); err != nil {
		return report{}, fmt.Errorf("inventory codes: %w", err)
	}
	return r, nil
}

func printReport(out io.Writer, r report) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(w, "WEEK\tENTRIES\tENTRY VALUE\tEXITS\tEXIT VALUE\t")
	for _, p := range r.Weekly.Points {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t\n", p.Label, p.EntryQuantity, p.EntryValue, p.ExitQuantity, p.ExitValue)
	}
	if r.Weekly.Skipped > 0 {
		fmt.Fprintf(w, "(%d transactions without a valid date skipped)\t\t\t\t\t\n", r.Weekly.Skipped)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PRODUCT\tNAME\tUNIT PRICE\tQUANTITY\tAMOUNT\t")
	for _, p := range r.TopProducts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t\n", p.ProductID, p.Name, p.UnitPrice, p.Quantity, p.Amount)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "INVENTORY CODE\tENTRIES\t")
	for _, s := range r.InventoryCodes {
		fmt.Fprintf(w, "%s\t%d\t\n", s.Code, s.Count)
	}

	return w.Flush()
}
