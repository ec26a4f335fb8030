package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/proxygov"
	"github.com/axiomesh/proxygov/api"
	"github.com/axiomesh/proxygov/core"
	"github.com/axiomesh/proxygov/repo"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func start(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return errors.Wrap(err, "log initialize")
	}

	printVersion()

	client, err := core.DialEthClient(ctx.Context, r.Config.DialUrl)
	if err != nil {
		return errors.Wrapf(err, "dial %s", r.Config.DialUrl)
	}

	guardian, err := core.NewGuardian(ctx.Context, r.Config, client)
	if err != nil {
		return errors.Wrap(err, "new guardian")
	}

	var server *api.Server
	if r.Config.HTTP.Listen != "" {
		server = api.NewServer(r.Config.HTTP.Listen, guardian, log.New().WithField("module", "api"))
	}

	if err := guardian.Start(); err != nil {
		return stopOnError(guardian, errors.Wrap(err, "start guardian"))
	}
	if server != nil {
		if err := server.Start(); err != nil {
			return stopOnError(guardian, errors.Wrap(err, "start http server"))
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	handleShutdown(guardian, server, &wg)

	fmt.Println("=============Guardian is ready=============")

	wg.Wait()

	return nil
}

func printVersion() {
	fmt.Printf("proxygov version: %s-%s-%s\n", proxygov.CurrentVersion, proxygov.CurrentBranch, proxygov.CurrentCommit)
	fmt.Printf("App build date: %s\n", proxygov.BuildDate)
	fmt.Printf("System version: %s\n", proxygov.Platform)
	fmt.Printf("Golang version: %s\n", proxygov.GoVersion)
	fmt.Println()
}

// stopOnError releases the guardian's database when start cannot finish.
func stopOnError(guardian *core.Guardian, err error) error {
	if stopErr := guardian.Stop(); stopErr != nil {
		return errors.Wrapf(err, "stop guardian: %v", stopErr)
	}
	return err
}

func handleShutdown(guardian *core.Guardian, server *api.Server, wg *sync.WaitGroup) {
	var stop = make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM)
	signal.Notify(stop, syscall.SIGINT)

	go func() {
		<-stop
		fmt.Println("received interrupt signal, shutting down...")
		if server != nil {
			if err := server.Stop(context.Background()); err != nil {
				fmt.Println("stop http server:", err)
			}
		}
		if err := guardian.Stop(); err != nil {
			fmt.Println("stop guardian:", err)
		}
		wg.Done()
	}()
}
