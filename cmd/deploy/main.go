package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/lazysuperheroes/lazylotto-cli/internal/deployer"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/artifacts"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/httpclient"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/mirror"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "deploy",
		Usage:   "deploy and wire the LazyLotto contract suite",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "environment file to load"},
			&cli.StringFlag{Name: "params", Value: "config-files/deploy.yaml", Usage: "deploy parameter file"},
			&cli.BoolFlag{Name: "resume", Usage: "continue an interrupted deployment from its checkpoint"},
			&cli.BoolFlag{Name: "verify-only", Usage: "verify an existing deployment's wiring and exit"},
			&cli.BoolFlag{Name: "include-trade-lotto", Usage: "also deploy the trade-lotto contract"},
			&cli.BoolFlag{Name: "non-interactive", Usage: "never prompt; skip the funding step"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if err := godotenv.Load(c.String("env-file")); err != nil && c.IsSet("env-file") {
		return fmt.Errorf("loading %s: %w", c.String("env-file"), err)
	}

	logger, err := logging.NewZapLogger(logging.Development, "deploy")
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	paramFile := c.String("params")
	if !c.IsSet("params") {
		// The default parameter file is optional; a missing one means
		// built-in token parameters.
		if _, err := os.Stat(paramFile); err != nil {
			paramFile = ""
		}
	}
	cfg, err := deployer.LoadConfig(paramFile)
	if err != nil {
		return err
	}
	cfg.Resume = c.Bool("resume")
	cfg.VerifyOnly = cfg.VerifyOnly || c.Bool("verify-only")
	cfg.IncludeTradeLotto = c.Bool("include-trade-lotto")
	cfg.NonInteractive = c.Bool("non-interactive")

	client, err := network.NewClient(cfg.Environment, cfg.Operator)
	if err != nil {
		return err
	}
	httpClient, err := httpclient.New(nil, logger)
	if err != nil {
		return err
	}
	mirrorAdapter := mirror.New(cfg.Environment.MirrorBaseURL(), httpClient, logger)
	registry := artifacts.NewRegistry(cfg.ArtifactDir)
	operatorRef := refs.AccountFromID(cfg.Operator.Account)
	p := pipeline.New(client, mirrorAdapter, operatorRef, logger)

	orchestrator := &deployer.Orchestrator{
		Config:  cfg,
		Backend: deployer.NewNetworkBackend(client, p, mirrorAdapter, registry, logger),
		Store:   &deployer.StateStore{Path: cfg.StateFile},
		Logger:  logger,
		In:      os.Stdin,
		Out:     os.Stdout,
		Prompt:  promptLine,
	}
	if cfg.NonInteractive {
		orchestrator.In = nil
		orchestrator.Prompt = nil
	}

	// A first interrupt stops the run between steps, after the in-flight
	// step's outcome is checkpointed; a second one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	return orchestrator.Run(ctx)
}

func promptLine(question string) (string, error) {
	fmt.Print(question)
	var line string
	if _, err := fmt.Scanln(&line); err != nil {
		return "", err
	}
	return line, nil
}
