package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"herdbook/internal/blob"
	"herdbook/internal/config"
	"herdbook/internal/core"
	"herdbook/pkg/daterange"
	"herdbook/pkg/domain"
	"herdbook/pkg/logger"
)

type app struct {
	cfg *config.Config
	log *zap.Logger
	loc *time.Location
	svc *core.Service
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, err
	}
	if path := c.String("db"); path != "" {
		cfg.Storage.SQLitePath = path
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp wires config, logging, metrics and the record store. Callers must Close it.
func openApp(ctx context.Context, c *cli.Command) (*app, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(ctx, core.StorageOptions{
		Driver:     core.StorageDriver(cfg.Storage.Driver),
		SQLitePath: cfg.Storage.SQLitePath,
	}, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, err
	}
	metrics, err := core.NewPrometheusMetricsRecorder(prometheus.NewRegistry())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	svc := core.NewService(store,
		core.WithLogger(logger.Named(log, "core")),
		core.WithLocation(loc),
		core.WithMetrics(metrics),
	)
	return &app{cfg: cfg, log: log, loc: loc, svc: svc}, nil
}

func (a *app) blobs(ctx context.Context) (blob.Store, error) {
	return blob.Open(ctx, a.cfg.Blob)
}

func (a *app) Close() error {
	_ = a.log.Sync()
	return a.svc.Close()
}

// withApp runs fn against a freshly opened app.
func withApp(fn func(ctx context.Context, c *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		a, err := openApp(ctx, c)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, c, a)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints the entity and any non-blocking rule findings.
func printResult(v any, res core.Result) error {
	for _, viol := range res.Violations {
		fmt.Fprintf(os.Stderr, "%s: %s (%s)\n", viol.Severity, viol.Message, viol.Rule)
	}
	return printJSON(v)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC 3339", raw)
}

func optionalDate(c *cli.Command, name string, loc *time.Location) (*time.Time, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	t, err := parseDate(c.String(name), loc)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

// parseCows accepts "all" or a comma separated id list.
func parseCows(raw string) (domain.CowSet, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, domain.HerdSentinel) {
		return domain.Herd(), nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return domain.CowSet{}, fmt.Errorf("invalid cow id %q", part)
		}
		ids = append(ids, id)
	}
	return domain.Cows(ids...), nil
}

func parseMoney(c *cli.Command, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.String(name)))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("--%s: invalid amount %q", name, c.String(name))
	}
	return d, nil
}

func optionalMoney(c *cli.Command, name string) (*decimal.Decimal, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	d, err := parseMoney(c, name)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalString(c *cli.Command, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

// window resolves --range and --from/--to into a date window. Explicit
// bounds win over a symbolic key.
func window(c *cli.Command, loc *time.Location, now time.Time) (*daterange.Range, error) {
	if c.IsSet("from") || c.IsSet("to") {
		from, err := parseDate(c.String("from"), loc)
		if err != nil {
			return nil, fmt.Errorf("--from: %w", err)
		}
		to := now.In(loc)
		if c.IsSet("to") {
			if to, err = parseDate(c.String("to"), loc); err != nil {
				return nil, fmt.Errorf("--to: %w", err)
			}
		}
		return daterange.Custom(from, to)
	}
	if !c.IsSet("range") {
		return nil, nil
	}
	return daterange.Resolve(daterange.Key(c.String("range")), now.In(loc))
}

func windowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "range", Usage: "symbolic window such as last7Days or currentMonth"},
		&cli.StringFlag{Name: "from", Usage: "window start date"},
		&cli.StringFlag{Name: "to", Usage: "window end date, default today"},
	}
}

func idArg(c *cli.Command) (int64, error) {
	raw := c.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("%s: missing id argument", c.Name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid id %q", c.Name, raw)
	}
	return id, nil
}
