package main

import (
	"fmt"

	"github.com/axiomesh/proxygov/repo"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var configCMD = &cli.Command{
	Name:  "config",
	Usage: "Manage the proxygov.toml of a repo",
	Subcommands: []*cli.Command{
		{
			Name:   "generate",
			Usage:  "Write the default config into a new repo",
			Action: generate,
		},
		{
			Name:   "show",
			Usage:  "Print the config with env overrides applied",
			Action: show,
		},
		{
			Name:   "check",
			Usage:  "Validate the config",
			Action: check,
		},
		{
			Name:   "rewrite-with-env",
			Usage:  "Persist env overrides into the config file",
			Action: rewriteWithEnv,
		},
	},
}

func generate(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	if _, err := repo.Open(p); err == nil {
		fmt.Printf("proxygov repo already exists at %s\n", p)
		return nil
	} else if !errors.Is(err, repo.ErrRepoNotExist) {
		return err
	}

	if _, err := repo.Load(p); err != nil {
		return err
	}
	fmt.Printf("initialized proxygov repo at %s\n", p)
	return nil
}

func show(ctx *cli.Context) error {
	r, err := openRepo(ctx)
	if err != nil {
		return err
	}
	str, err := repo.MarshalConfig(r.Config)
	if err != nil {
		return err
	}
	fmt.Println(str)
	return nil
}

func check(ctx *cli.Context) error {
	if _, err := openRepo(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("config check failed: %v", err), 1)
	}
	fmt.Println("config is valid")
	return nil
}

func rewriteWithEnv(ctx *cli.Context) error {
	r, err := openRepo(ctx)
	if err != nil {
		return err
	}
	return r.Flush()
}

func openRepo(ctx *cli.Context) (*repo.Repo, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Open(p)
}

func getRootPath(ctx *cli.Context) (string, error) {
	return repo.ResolveRoot(ctx.String("repo"))
}
