package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"herdbook/internal/core"
	"herdbook/pkg/domain"
)

func eventFields() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "type", Required: true, Usage: "delivery, insemination, vaccination, ..."},
		&cli.StringFlag{Name: "date", Required: true},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "cows", Required: true, Usage: `comma separated cattle ids or "all"`},
	}
}

func eventFromFlags(c *cli.Command, a *app) (core.Event, error) {
	date, err := parseDate(c.String("date"), a.loc)
	if err != nil {
		return core.Event{}, fmt.Errorf("--date: %w", err)
	}
	cows, err := parseCows(c.String("cows"))
	if err != nil {
		return core.Event{}, fmt.Errorf("--cows: %w", err)
	}
	return core.Event{Type: c.String("type"), Date: date, Description: c.String("description"), Cows: cows}, nil
}

func eventCommand() *cli.Command {
	return &cli.Command{
		Name:  "event",
		Usage: "Manage herd events",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Flags: eventFields(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					ev, err := eventFromFlags(c, a)
					if err != nil {
						return err
					}
					created, res, err := a.svc.AddEvent(ctx, ev)
					if err != nil {
						return err
					}
					return printResult(created, res)
				}),
			},
			{
				Name:      "update",
				ArgsUsage: "<id>",
				Flags:     eventFields(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					ev, err := eventFromFlags(c, a)
					if err != nil {
						return err
					}
					updated, res, err := a.svc.UpdateEvent(ctx, id, ev)
					if err != nil {
						return err
					}
					return printResult(updated, res)
				}),
			},
			{
				Name: "list",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "cow", Usage: "only events naming this animal"},
					&cli.IntFlag{Name: "upcoming", Usage: "only pending events in the next N days"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					var (
						events []core.Event
						err    error
					)
					switch {
					case c.IsSet("cow"):
						events, err = a.svc.ListEventsForCattle(ctx, c.Int("cow"))
					case c.IsSet("upcoming"):
						events, err = a.svc.UpcomingEvents(ctx, timeNow(), int(c.Int("upcoming")))
					default:
						events, err = a.svc.ListEvents(ctx)
					}
					if err != nil {
						return err
					}
					return printJSON(events)
				}),
			},
			{
				Name:      "status",
				ArgsUsage: "<id> <pending|completed>",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					updated, res, err := a.svc.SetEventStatus(ctx, id, domain.EventStatus(c.Args().Get(1)))
					if err != nil {
						return err
					}
					return printResult(updated, res)
				}),
			},
			{
				Name:      "delete",
				ArgsUsage: "<id>",
				Usage:     "Delete a completed event, or any event with --force",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "force"}},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					var res core.Result
					if c.Bool("force") {
						res, err = a.svc.ForceDeleteEvent(ctx, id)
					} else {
						res, err = a.svc.DeleteEvent(ctx, id)
					}
					if err != nil {
						return err
					}
					return printResult(map[string]int64{"deleted": id}, res)
				}),
			},
		},
	}
}

func milkFields() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "date", Required: true},
		&cli.StringFlag{Name: "cows", Value: domain.HerdSentinel, Usage: `comma separated cattle ids or "all"`},
		&cli.FloatFlag{Name: "am", Usage: "morning litres"},
		&cli.FloatFlag{Name: "pm", Usage: "evening litres"},
		&cli.StringFlag{Name: "rate-am", Value: "0", Usage: "morning price per litre"},
		&cli.StringFlag{Name: "rate-pm", Value: "0", Usage: "evening price per litre"},
	}
}

func milkFromFlags(c *cli.Command, a *app) (core.MilkRecord, error) {
	date, err := parseDate(c.String("date"), a.loc)
	if err != nil {
		return core.MilkRecord{}, fmt.Errorf("--date: %w", err)
	}
	cows, err := parseCows(c.String("cows"))
	if err != nil {
		return core.MilkRecord{}, fmt.Errorf("--cows: %w", err)
	}
	rateAM, err := parseMoney(c, "rate-am")
	if err != nil {
		return core.MilkRecord{}, err
	}
	ratePM, err := parseMoney(c, "rate-pm")
	if err != nil {
		return core.MilkRecord{}, err
	}
	return core.MilkRecord{
		Date:    date,
		Cows:    cows,
		AMTotal: c.Float("am"),
		PMTotal: c.Float("pm"),
		RateAM:  rateAM,
		RatePM:  ratePM,
	}, nil
}

func milkCommand() *cli.Command {
	return &cli.Command{
		Name:  "milk",
		Usage: "Record daily milk yields",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Flags: milkFields(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					m, err := milkFromFlags(c, a)
					if err != nil {
						return err
					}
					created, res, err := a.svc.AddMilkRecord(ctx, m)
					if err != nil {
						return err
					}
					return printResult(created, res)
				}),
			},
			{
				Name:      "update",
				ArgsUsage: "<id>",
				Flags:     milkFields(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					m, err := milkFromFlags(c, a)
					if err != nil {
						return err
					}
					updated, res, err := a.svc.UpdateMilkRecord(ctx, id, m)
					if err != nil {
						return err
					}
					return printResult(updated, res)
				}),
			},
			{
				Name:      "delete",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					res, err := a.svc.DeleteMilkRecord(ctx, id)
					if err != nil {
						return err
					}
					return printResult(map[string]int64{"deleted": id}, res)
				}),
			},
			{
				Name: "list",
				Flags: append(windowFlags(),
					&cli.IntFlag{Name: "cow", Usage: "only records naming this animal"},
					&cli.BoolFlag{Name: "summary", Usage: "print totals instead of records"},
				),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if c.IsSet("cow") {
						records, err := a.svc.ListMilkRecordsForCattle(ctx, c.Int("cow"))
						if err != nil {
							return err
						}
						return printJSON(records)
					}
					win, err := window(c, a.loc, timeNow())
					if err != nil {
						return err
					}
					if c.Bool("summary") {
						sum, err := a.svc.MilkSummary(ctx, win)
						if err != nil {
							return err
						}
						return printJSON(sum)
					}
					records, err := a.svc.ListMilkRecords(ctx, win)
					if err != nil {
						return err
					}
					return printJSON(records)
				}),
			},
		},
	}
}

func txFields() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "type", Required: true, Usage: "income or expense"},
		&cli.StringFlag{Name: "amount", Required: true},
		&cli.StringFlag{Name: "date", Required: true},
		&cli.StringFlag{Name: "category", Usage: "defaults to otherIncome or otherExpenses"},
		&cli.StringFlag{Name: "description"},
		&cli.IntFlag{Name: "cow", Usage: "linked animal"},
	}
}

func txFromFlags(c *cli.Command, a *app) (core.Transaction, error) {
	amount, err := parseMoney(c, "amount")
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(c.String("date"), a.loc)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("--date: %w", err)
	}
	t := core.Transaction{
		Type:        domain.TransactionType(c.String("type")),
		Amount:      amount,
		Date:        date,
		Category:    domain.Category(c.String("category")),
		Description: c.String("description"),
	}
	if c.IsSet("cow") {
		cow := c.Int("cow")
		t.CowID = &cow
	}
	return t, nil
}

func txCommand() *cli.Command {
	return &cli.Command{
		Name:  "tx",
		Usage: "Record income and expenses",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Flags: txFields(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					t, err := txFromFlags(c, a)
					if err != nil {
						return err
					}
					created, res, err := a.svc.AddTransaction(ctx, t)
					if err != nil {
						return err
					}
					return printResult(created, res)
				}),
			},
			{
				Name:      "update",
				ArgsUsage: "<id>",
				Flags:     txFields(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					t, err := txFromFlags(c, a)
					if err != nil {
						return err
					}
					updated, res, err := a.svc.UpdateTransaction(ctx, id, t)
					if err != nil {
						return err
					}
					return printResult(updated, res)
				}),
			},
			{
				Name:      "delete",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					res, err := a.svc.DeleteTransaction(ctx, id)
					if err != nil {
						return err
					}
					return printResult(map[string]int64{"deleted": id}, res)
				}),
			},
			{
				Name: "list",
				Flags: append(windowFlags(),
					&cli.IntFlag{Name: "cow"},
					&cli.StringFlag{Name: "type"},
				),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					f, err := txFilter(c, a)
					if err != nil {
						return err
					}
					txs, err := a.svc.ListTransactions(ctx, f)
					if err != nil {
						return err
					}
					return printJSON(txs)
				}),
			},
			{
				Name:  "summary",
				Usage: "Income, expenses and net over a window",
				Flags: windowFlags(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					win, err := window(c, a.loc, timeNow())
					if err != nil {
						return err
					}
					sum, err := a.svc.FinanceSummary(ctx, win)
					if err != nil {
						return err
					}
					return printJSON(sum)
				}),
			},
		},
	}
}

func txFilter(c *cli.Command, a *app) (core.TransactionFilter, error) {
	var f core.TransactionFilter
	if c.IsSet("cow") {
		cow := c.Int("cow")
		f.CowID = &cow
	}
	f.Type = domain.TransactionType(c.String("type"))
	win, err := window(c, a.loc, timeNow())
	if err != nil {
		return f, err
	}
	f.Range = win
	return f, nil
}

func healthFields() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "cow", Required: true},
		&cli.StringFlag{Name: "disease", Required: true},
		&cli.StringFlag{Name: "symptoms"},
		&cli.StringFlag{Name: "diagnosis"},
		&cli.StringFlag{Name: "treatment"},
		&cli.StringFlag{Name: "start", Required: true, Usage: "start date"},
		&cli.StringFlag{Name: "end", Usage: "end date"},
		&cli.StringFlag{Name: "status", Value: string(domain.HealthActive), Usage: "active or recovered"},
		&cli.StringFlag{Name: "notes"},
	}
}

func healthFromFlags(c *cli.Command, a *app) (core.HealthRecord, error) {
	start, err := parseDate(c.String("start"), a.loc)
	if err != nil {
		return core.HealthRecord{}, fmt.Errorf("--start: %w", err)
	}
	end, err := optionalDate(c, "end", a.loc)
	if err != nil {
		return core.HealthRecord{}, err
	}
	return core.HealthRecord{
		CowID:     c.Int("cow"),
		Disease:   c.String("disease"),
		Symptoms:  c.String("symptoms"),
		Diagnosis: c.String("diagnosis"),
		Treatment: c.String("treatment"),
		StartDate: start,
		EndDate:   end,
		Status:    domain.HealthStatus(c.String("status")),
		Notes:     c.String("notes"),
	}, nil
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Track illness episodes",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Flags: healthFields(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					h, err := healthFromFlags(c, a)
					if err != nil {
						return err
					}
					created, res, err := a.svc.AddHealthRecord(ctx, h)
					if err != nil {
						return err
					}
					return printResult(created, res)
				}),
			},
			{
				Name:      "update",
				ArgsUsage: "<id>",
				Flags:     healthFields(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					h, err := healthFromFlags(c, a)
					if err != nil {
						return err
					}
					updated, res, err := a.svc.UpdateHealthRecord(ctx, id, h)
					if err != nil {
						return err
					}
					return printResult(updated, res)
				}),
			},
			{
				Name:      "delete",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					res, err := a.svc.DeleteHealthRecord(ctx, id)
					if err != nil {
						return err
					}
					return printResult(map[string]int64{"deleted": id}, res)
				}),
			},
			{
				Name:      "list",
				ArgsUsage: "<cow id>",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					records, err := a.svc.ListHealthRecords(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(records)
				}),
			},
		},
	}
}
