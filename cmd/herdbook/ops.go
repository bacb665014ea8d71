package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"herdbook/internal/backup"
	"herdbook/internal/legacy"
	"herdbook/internal/reminders"
	"herdbook/pkg/daterange"
	"herdbook/pkg/logger"
)

var timeNow = time.Now

func rangeCommand() *cli.Command {
	return &cli.Command{
		Name:      "range",
		Usage:     "Show the dates a symbolic window covers",
		ArgsUsage: "[key]",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			if c.Args().Len() == 0 {
				return printJSON(daterange.Keys())
			}
			r, err := daterange.Resolve(daterange.Key(c.Args().First()), timeNow().In(loc))
			if err != nil {
				return err
			}
			return printJSON(r)
		},
	}
}

func remindersCommand() *cli.Command {
	return &cli.Command{
		Name:  "reminders",
		Usage: "List today's reminders, or keep listing them on a schedule with --watch",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "run on HERDBOOK_REMINDER_CRON until interrupted"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			if !c.Bool("watch") {
				items, err := currentReminders(ctx, a)
				if err != nil {
					return err
				}
				return printJSON(items)
			}
			return watchReminders(ctx, a)
		}),
	}
}

func currentReminders(ctx context.Context, a *app) ([]reminders.Reminder, error) {
	events, err := a.svc.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	return reminders.Generate(events, timeNow().In(a.loc)), nil
}

func watchReminders(ctx context.Context, a *app) error {
	log := logger.Named(a.log, "reminders")
	sched := cron.New(cron.WithLocation(a.loc))
	_, err := sched.AddFunc(a.cfg.Reminders.CronSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		items, err := currentReminders(runCtx, a)
		if err != nil {
			log.Error("failed to build reminders", zap.Error(err))
			return
		}
		log.Info("reminders generated", zap.Int("count", len(items)))
		if err := printJSON(items); err != nil {
			log.Error("failed to print reminders", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", a.cfg.Reminders.CronSchedule, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info("starting reminder schedule", zap.String("schedule", a.cfg.Reminders.CronSchedule))
	sched.Start()
	<-ctx.Done()
	log.Info("stopping reminder schedule")
	<-sched.Stop().Done()
	return nil
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Export the records to the blob store or restore them into an empty store",
		Commands: []*cli.Command{
			{
				Name: "export",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
					blobs, err := a.blobs(ctx)
					if err != nil {
						return err
					}
					info, counts, err := backup.Export(ctx, a.svc.Store(), blobs, timeNow())
					if err != nil {
						return err
					}
					a.log.Info("backup written", zap.String("key", info.Key), zap.String("driver", string(blobs.Driver())))
					return printJSON(map[string]any{"key": info.Key, "size": info.Size, "counts": counts})
				}),
			},
			{
				Name:      "restore",
				Usage:     "Restore the given backup key, or the newest one",
				ArgsUsage: "[key]",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					blobs, err := a.blobs(ctx)
					if err != nil {
						return err
					}
					key := c.Args().First()
					if key == "" {
						if key, err = backup.Latest(ctx, blobs); err != nil {
							return err
						}
					}
					counts, err := backup.Restore(ctx, a.svc.Store(), blobs, key)
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"key": key, "counts": counts})
				}),
			},
			{
				Name: "list",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
					blobs, err := a.blobs(ctx)
					if err != nil {
						return err
					}
					infos, err := blobs.List(ctx, backup.Prefix)
					if err != nil {
						return err
					}
					return printJSON(infos)
				}),
			},
		},
	}
}

func importLegacyCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-legacy",
		Usage:     "Import the database of the mobile app into an empty store",
		ArgsUsage: "<legacy.db>",
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("import-legacy: missing database path")
			}
			if err := legacy.Detect(ctx, path); err != nil {
				return err
			}
			imp := legacy.NewImporter(
				legacy.WithLogger(logger.Named(a.log, "legacy")),
				legacy.WithLocation(a.loc),
			)
			report, err := imp.Import(ctx, path, a.svc.Store())
			if err != nil {
				return err
			}
			return printJSON(report)
		}),
	}
}
