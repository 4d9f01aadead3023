package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/seagrayinc/u2fhid-tester/internal/config"
	"github.com/seagrayinc/u2fhid-tester/internal/hid"
	"github.com/seagrayinc/u2fhid-tester/internal/probe"
	"github.com/seagrayinc/u2fhid-tester/internal/report"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("u2fhid-tester"),
		kong.Description("Checks how FIDO U2FHID keys answer a malformed U2F GET_VERSION request."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	log := cli.Logger(os.Stderr)
	if err := run(ctx, &cli, log); err != nil {
		log.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cli *config.CLI, log *slog.Logger) error {
	extra, err := cli.Devices()
	if err != nil {
		return err
	}

	mgr, err := hid.NewManager(cli.Backend)
	if err != nil {
		return err
	}

	runner := &probe.Runner{
		Manager: mgr,
		Prober: &probe.Prober{
			Timeout:       cli.ReadTimeout(),
			AbortOnDesync: cli.AbortOnDesync,
			Logger:        log,
		},
		Extra:  extra,
		Logger: log,
	}

	if cli.List {
		devices, err := runner.Candidates()
		if err != nil {
			return err
		}
		for _, d := range devices {
			fmt.Printf("%s\t%s\n", d, d.Path)
		}
		return nil
	}

	// a partial report is still printed when the run aborts
	rep, err := runner.Run(ctx)
	if rep != nil {
		if werr := report.Write(os.Stdout, cli.Format, rep); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return err
}
