package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "proxygov"
	app.Usage = "Token holder governance for upgradeable proxies"
	app.Compiled = time.Now()

	cli.VersionPrinter = func(c *cli.Context) {
		printVersion()
	}

	// global flags
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "repo",
			Usage: "proxygov storage repo path",
		},
	}

	app.Commands = []*cli.Command{
		configCMD,
		{
			Name:   "start",
			Usage:  "Start the guardian following governance logs",
			Action: start,
		},
		simulateCMD,
		{
			Name:    "version",
			Aliases: []string{"v"},
			Usage:   "proxygov version",
			Action: func(ctx *cli.Context) error {
				printVersion()
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
