// Command catalog lists the showroom inventory from the proxy in the
// terminal, with the same filters and sort orders as the web catalog.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"car-showroom/internal/catalog"
	"car-showroom/internal/config"
	"car-showroom/internal/domain"
	"car-showroom/internal/i18n"
	"car-showroom/internal/logger"
	"car-showroom/internal/render"
	"car-showroom/internal/transform"

	"go.uber.org/zap"
)

type options struct {
	apiURL  string
	lang    string
	filters domain.FilterState
	facets  bool
	format  string
	refresh time.Duration
	timeout time.Duration
}

func parseFlags(args []string, defaultAPI string) (options, error) {
	var (
		opts options
		sort string
	)

	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.StringVar(&opts.apiURL, "api", defaultAPI, "base URL of the showroom proxy")
	fs.StringVar(&opts.lang, "lang", "zh", "display language (zh or en)")
	fs.StringVar(&opts.filters.Keyword, "keyword", "", "case-insensitive match on name or brand")
	fs.StringVar(&opts.filters.Brand, "brand", "", "exact brand")
	fs.StringVar(&opts.filters.BodyType, "body", "", "exact body type, as stored (轿车, SUV, ...)")
	fs.StringVar(&opts.filters.Fuel, "fuel", "", "exact fuel type, as stored (汽油, 纯电动, ...)")
	fs.StringVar(&sort, "sort", string(domain.SortPriceDesc), "price-asc, price-desc, year-desc or mileage-asc")
	fs.BoolVar(&opts.facets, "facets", false, "print brand, body type and fuel facets")
	fs.StringVar(&opts.format, "format", "table", "output format: table or json")
	fs.DurationVar(&opts.refresh, "refresh", 0, "reload at this interval until interrupted (0 runs once)")
	fs.DurationVar(&opts.timeout, "timeout", 15*time.Second, "HTTP timeout")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.filters.SortBy = domain.SortKey(sort)
	if !opts.filters.SortBy.Valid() {
		return opts, fmt.Errorf("unknown sort order %q", sort)
	}
	if opts.format != "table" && opts.format != "json" {
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, nil
}

func main() {
	cfg := config.Load()

	opts, err := parseFlags(os.Args[1:], cfg.Catalog.APIURL)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.NewCLI(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := catalog.NewFetcher(opts.apiURL, &http.Client{Timeout: opts.timeout}, transform.New(), log)
	session := catalog.NewSession(fetcher, log)

	if err := run(ctx, session, opts, os.Stdout); err != nil {
		log.Error("Catalog failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, session *catalog.Session, opts options, out io.Writer) error {
	locale := i18n.ParseLocale(opts.lang)

	if err := show(ctx, session, opts, locale, out); err != nil || opts.refresh <= 0 {
		return err
	}

	ticker := time.NewTicker(opts.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := show(ctx, session, opts, locale, out); err != nil {
				return err
			}
		}
	}
}

func show(ctx context.Context, session *catalog.Session, opts options, locale i18n.Locale, out io.Writer) error {
	session.Load(ctx)
	view := session.View(opts.filters)

	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(view)
	}

	if _, err := fmt.Fprintln(out, render.Table(view.Items, locale)); err != nil {
		return err
	}
	if opts.facets || view.Err != "" {
		if _, err := fmt.Fprint(out, render.Facets(view, locale)); err != nil {
			return err
		}
	}
	return nil
}
