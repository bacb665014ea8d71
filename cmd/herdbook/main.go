package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newRoot().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "herdbook:", err)
		os.Exit(1)
	}
}

func newRoot() *cli.Command {
	return &cli.Command{
		Name:  "herdbook",
		Usage: "Dairy herd records: cattle, events, milk, money and health",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional dotenv file read before the environment"},
			&cli.StringFlag{Name: "db", Usage: "sqlite path, overrides HERDBOOK_SQLITE_PATH"},
			&cli.StringFlag{Name: "log-level", Usage: "overrides HERDBOOK_LOG_LEVEL"},
		},
		Commands: []*cli.Command{
			cattleCommand(),
			eventCommand(),
			milkCommand(),
			txCommand(),
			healthCommand(),
			rangeCommand(),
			remindersCommand(),
			backupCommand(),
			importLegacyCommand(),
		},
	}
}
