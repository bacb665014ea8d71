package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"herdbook/internal/core"
	"herdbook/pkg/domain"
)

func cattleFields() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "tag", Usage: "ear tag number"},
		&cli.StringFlag{Name: "name"},
		&cli.StringFlag{Name: "gender", Usage: "male or female"},
		&cli.StringFlag{Name: "obtained", Usage: "bornOnFarm, purchase or other"},
		&cli.StringFlag{Name: "breed"},
		&cli.StringFlag{Name: "stage", Usage: "calf, heifer or cow"},
		&cli.StringFlag{Name: "status", Usage: "reproductive status such as lactatingAndPregnant"},
		&cli.StringFlag{Name: "weight"},
		&cli.StringFlag{Name: "born", Usage: "date of birth"},
		&cli.StringFlag{Name: "entered", Usage: "date of entry"},
		&cli.StringFlag{Name: "mother", Usage: "mother's ear tag"},
		&cli.StringFlag{Name: "inseminated", Usage: "insemination date"},
		&cli.StringFlag{Name: "delivered", Usage: "last delivery date"},
		&cli.StringFlag{Name: "price", Usage: "purchase price"},
	}
}

func cattleCommand() *cli.Command {
	return &cli.Command{
		Name:  "cattle",
		Usage: "Manage animals",
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Register an animal",
				Flags:  cattleFields(),
				Action: withApp(addCattle),
			},
			{
				Name:      "update",
				Usage:     "Change the given fields of an animal",
				ArgsUsage: "<id>",
				Flags:     cattleFields(),
				Action:    withApp(updateCattle),
			},
			{
				Name:      "status",
				Usage:     "Sell, record a death or change the sick and present flags",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "disposal", Usage: "alive, sold or died"},
					&cli.StringFlag{Name: "sale-amount"},
					&cli.BoolFlag{Name: "sick"},
					&cli.BoolFlag{Name: "present"},
				},
				Action: withApp(changeCattleStatus),
			},
			{
				Name:  "list",
				Usage: "List animals, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "disposed", Usage: "list sold and dead animals instead"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					all, err := a.svc.ListCattle(ctx)
					if err != nil {
						return err
					}
					present, disposed := core.PartitionCattle(all)
					if c.Bool("disposed") {
						return printJSON(disposed)
					}
					return printJSON(present)
				}),
			},
			{
				Name:  "filter",
				Usage: "List animals matching every given criterion",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "breed"},
					&cli.StringFlag{Name: "stage"},
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "group", Usage: "pregnant, lactating, inseminated or nonLactating"},
					&cli.BoolFlag{Name: "sick"},
					&cli.BoolFlag{Name: "present"},
					&cli.StringFlag{Name: "born-after"},
					&cli.StringFlag{Name: "born-before"},
					&cli.StringFlag{Name: "query", Usage: "ear tag or name substring"},
				},
				Action: withApp(filterCattle),
			},
			{
				Name:  "stats",
				Usage: "Herd composition",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
					snap, err := a.svc.HerdStats(ctx)
					if err != nil {
						return err
					}
					return printJSON(snap)
				}),
			},
			{
				Name:      "show",
				Usage:     "Show one animal with its events, milk and health records",
				ArgsUsage: "<id>",
				Action:    withApp(showCattle),
			},
		},
	}
}

func addCattle(ctx context.Context, c *cli.Command, a *app) error {
	cow := core.Cattle{
		EarTagNumber:    c.String("tag"),
		Name:            c.String("name"),
		Gender:          domain.Gender(c.String("gender")),
		ObtainedMethod:  domain.ObtainedMethod(c.String("obtained")),
		Breed:           domain.Breed(c.String("breed")),
		Stage:           domain.Stage(c.String("stage")),
		Status:          domain.ReproStatus(c.String("status")),
		Weight:          c.String("weight"),
		MotherTagNumber: c.String("mother"),
	}
	var err error
	if cow.DateOfBirth, err = optionalDate(c, "born", a.loc); err != nil {
		return err
	}
	if cow.DateOfEntry, err = optionalDate(c, "entered", a.loc); err != nil {
		return err
	}
	if cow.InseminationDate, err = optionalDate(c, "inseminated", a.loc); err != nil {
		return err
	}
	if cow.LastDeliveryDate, err = optionalDate(c, "delivered", a.loc); err != nil {
		return err
	}
	price, err := optionalMoney(c, "price")
	if err != nil {
		return err
	}
	if price != nil {
		cow.PurchasePrice = decimal.NewNullDecimal(*price)
	}
	created, res, err := a.svc.AddCattle(ctx, cow)
	if err != nil {
		return err
	}
	return printResult(created, res)
}

func updateCattle(ctx context.Context, c *cli.Command, a *app) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	patch := core.CattlePatch{
		EarTagNumber:    optionalString(c, "tag"),
		Name:            optionalString(c, "name"),
		Weight:          optionalString(c, "weight"),
		MotherTagNumber: optionalString(c, "mother"),
	}
	if v := optionalString(c, "gender"); v != nil {
		g := domain.Gender(*v)
		patch.Gender = &g
	}
	if v := optionalString(c, "obtained"); v != nil {
		m := domain.ObtainedMethod(*v)
		patch.ObtainedMethod = &m
	}
	if v := optionalString(c, "breed"); v != nil {
		b := domain.Breed(*v)
		patch.Breed = &b
	}
	if v := optionalString(c, "stage"); v != nil {
		s := domain.Stage(*v)
		patch.Stage = &s
	}
	if v := optionalString(c, "status"); v != nil {
		s := domain.ReproStatus(*v)
		patch.Status = &s
	}
	if patch.DateOfBirth, err = optionalDate(c, "born", a.loc); err != nil {
		return err
	}
	if patch.DateOfEntry, err = optionalDate(c, "entered", a.loc); err != nil {
		return err
	}
	if patch.InseminationDate, err = optionalDate(c, "inseminated", a.loc); err != nil {
		return err
	}
	if patch.LastDeliveryDate, err = optionalDate(c, "delivered", a.loc); err != nil {
		return err
	}
	if patch.PurchasePrice, err = optionalMoney(c, "price"); err != nil {
		return err
	}
	updated, res, err := a.svc.UpdateCattle(ctx, id, patch)
	if err != nil {
		return err
	}
	return printResult(updated, res)
}

func changeCattleStatus(ctx context.Context, c *cli.Command, a *app) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	var change core.StatusChange
	if v := optionalString(c, "disposal"); v != nil {
		d := domain.Disposal(*v)
		change.Disposal = &d
	}
	if change.SaleAmount, err = optionalMoney(c, "sale-amount"); err != nil {
		return err
	}
	if c.IsSet("sick") {
		sick := c.Bool("sick")
		change.IsSick = &sick
	}
	if c.IsSet("present") {
		present := c.Bool("present")
		change.IsPresent = &present
	}
	updated, res, err := a.svc.ChangeCattleStatus(ctx, id, change)
	if err != nil {
		return err
	}
	return printResult(updated, res)
}

func filterCattle(ctx context.Context, c *cli.Command, a *app) error {
	f := core.CattleFilter{
		Breed:       domain.Breed(c.String("breed")),
		Stage:       domain.Stage(c.String("stage")),
		Status:      domain.ReproStatus(c.String("status")),
		Group:       domain.StatusGroup(c.String("group")),
		EarTagQuery: c.String("query"),
	}
	if f.Group != "" && !f.Group.Valid() {
		return fmt.Errorf("unknown group %q", f.Group)
	}
	if c.IsSet("sick") {
		sick := c.Bool("sick")
		f.Sick = &sick
	}
	if c.IsSet("present") {
		present := c.Bool("present")
		f.Present = &present
	}
	var err error
	if f.BornAfter, err = optionalDate(c, "born-after", a.loc); err != nil {
		return err
	}
	if f.BornBefore, err = optionalDate(c, "born-before", a.loc); err != nil {
		return err
	}
	all, err := a.svc.ListCattle(ctx)
	if err != nil {
		return err
	}
	return printJSON(core.FilterCattle(all, f))
}

func showCattle(ctx context.Context, c *cli.Command, a *app) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	cow, err := a.svc.GetCattle(ctx, id)
	if err != nil {
		return err
	}
	events, err := a.svc.ListEventsForCattle(ctx, id)
	if err != nil {
		return err
	}
	milk, err := a.svc.ListMilkRecordsForCattle(ctx, id)
	if err != nil {
		return err
	}
	health, err := a.svc.ListHealthRecords(ctx, id)
	if err != nil {
		return err
	}
	txs, err := a.svc.ListTransactions(ctx, core.TransactionFilter{CowID: &id})
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"cattle":       cow,
		"events":       events,
		"milk_records": milk,
		"health":       health,
		"transactions": txs,
	})
}
