package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/lazysuperheroes/lazylotto-cli/internal/indexer"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/artifacts"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/env"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/httpclient"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/mirror"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "indexer",
		Usage:   "generate the pool catalog from chain state",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "environment file to load"},
			&cli.BoolFlag{Name: "active-only", Usage: "index only active pools"},
			&cli.StringFlag{Name: "output", Usage: "write the catalog to a file instead of stdout"},
			&cli.StringFlag{Name: "contract", Usage: "LazyLotto contract id (overrides LAZY_LOTTO_CONTRACT_ID)"},
			&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
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

	level := logging.Production
	if c.Bool("verbose") {
		level = logging.Development
	}
	logger, err := logging.NewZapLogger(level, "indexer")
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	environment, err := network.ParseEnvironment(env.GetEnvString("ENVIRONMENT", "TEST"))
	if err != nil {
		return err
	}

	rawMain := c.String("contract")
	if rawMain == "" {
		rawMain = os.Getenv("LAZY_LOTTO_CONTRACT_ID")
	}
	if rawMain == "" {
		return fmt.Errorf("no contract: pass --contract or set LAZY_LOTTO_CONTRACT_ID")
	}
	mainContract, err := refs.ParseContract(rawMain)
	if err != nil {
		return fmt.Errorf("contract %q: %w", rawMain, err)
	}

	var poolManager *refs.ContractRef
	if raw := os.Getenv("LAZY_LOTTO_POOL_MANAGER_ID"); raw != "" {
		pm, err := refs.ParseContract(raw)
		if err != nil {
			return fmt.Errorf("LAZY_LOTTO_POOL_MANAGER_ID: %w", err)
		}
		poolManager = &pm
	}

	httpClient, err := httpclient.New(nil, logger)
	if err != nil {
		return err
	}
	reader := &mirrorReader{
		mirror:   mirror.New(environment.MirrorBaseURL(), httpClient, logger),
		registry: artifacts.NewRegistry(env.GetEnvString("ARTIFACT_DIR", "artifacts")),
	}

	ix := indexer.New(reader, mainContract, poolManager, string(environment), logger)
	doc, err := ix.Run(context.Background(), indexer.Options{ActiveOnly: c.Bool("active-only")})
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, append(raw, '\n'), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		logger.Infof("Wrote %d pool(s) to %s", doc.Stats.IndexedPools, path)
		return nil
	}
	fmt.Println(string(raw))
	return nil
}

// mirrorReader serves the indexer's reads straight from the mirror; no
// operator identity or consensus node connection is needed.
type mirrorReader struct {
	mirror   *mirror.Adapter
	registry *artifacts.Registry
}

func (r *mirrorReader) Read(ctx context.Context, contract refs.ContractRef, artifact, fn string, args ...interface{}) ([]interface{}, error) {
	art, err := r.registry.Load(artifact)
	if err != nil {
		return nil, err
	}
	calldata, err := art.Encode(fn, args...)
	if err != nil {
		return nil, err
	}
	raw, err := r.mirror.ContractCall(ctx, contract.EvmAddress, calldata, nil)
	if err != nil {
		return nil, err
	}
	return art.DecodeReturn(fn, raw)
}
