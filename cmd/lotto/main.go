package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/lazysuperheroes/lazylotto-cli/internal/commands"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/artifacts"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/env"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/httpclient"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/keys"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/mirror"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/multisig"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/preflight"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "lotto",
		Usage:   "LazyLotto player and admin toolkit",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "machine-readable output"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "environment file to load"},
			&cli.BoolFlag{Name: "multisig", Usage: "route writes through the multi-sig coordinator"},
			&cli.StringFlag{Name: "workflow", Value: "interactive", Usage: "multi-sig workflow: interactive or offline"},
			&cli.BoolFlag{Name: "export-only", Usage: "freeze and export the transaction instead of submitting"},
			&cli.StringFlag{Name: "export", Value: "multisig-tx", Usage: "base path for the exported .bin/.json pair"},
			&cli.StringFlag{Name: "signatures", Usage: "comma-separated signature files to assemble (offline workflow)"},
			&cli.IntFlag{Name: "threshold", Value: 1, Usage: "required number of unique signatures"},
			&cli.StringFlag{Name: "signers", Usage: "comma-separated key files for interactive signing"},
		},
		Commands: []*cli.Command{
			{
				Name:      "buy",
				Usage:     "buy tickets in a pool",
				ArgsUsage: "<pool-id> [tickets]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "roll", Usage: "roll the tickets in the same transaction"},
				},
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					poolID, err := poolIDArg(c)
					if err != nil {
						return err
					}
					tickets := int64(1)
					if c.Args().Len() > 1 {
						if tickets, err = strconv.ParseInt(c.Args().Get(1), 10, 64); err != nil {
							return fmt.Errorf("ticket count %q: %w", c.Args().Get(1), err)
						}
					}
					return a.Buy(ctx, poolID, tickets, c.Bool("roll"))
				}),
			},
			{
				Name:      "roll",
				Usage:     "roll all outstanding entries in a pool",
				ArgsUsage: "<pool-id>",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					poolID, err := poolIDArg(c)
					if err != nil {
						return err
					}
					return a.Roll(ctx, poolID)
				}),
			},
			{
				Name:  "claim",
				Usage: "claim all pending prizes",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					return a.Claim(ctx)
				}),
			},
			{
				Name:      "redeem",
				Usage:     "convert entries to NFT tickets, or NFT tickets back to entries",
				ArgsUsage: "<pool-id> [count]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "to-entries", Usage: "unwrap NFT tickets back into entries"},
				},
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					poolID, err := poolIDArg(c)
					if err != nil {
						return err
					}
					count := int64(1)
					if c.Args().Len() > 1 {
						if count, err = strconv.ParseInt(c.Args().Get(1), 10, 64); err != nil {
							return fmt.Errorf("count %q: %w", c.Args().Get(1), err)
						}
					}
					return a.Redeem(ctx, poolID, count, !c.Bool("to-entries"))
				}),
			},
			{
				Name:  "pools",
				Usage: "list pools",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "active-only", Usage: "skip paused and closed pools"},
				},
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					return a.Pools(ctx, c.Bool("active-only"))
				}),
			},
			{
				Name:      "pool",
				Usage:     "show one pool in detail",
				ArgsUsage: "<pool-id>",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					poolID, err := poolIDArg(c)
					if err != nil {
						return err
					}
					return a.Pool(ctx, poolID)
				}),
			},
			{
				Name:      "user",
				Usage:     "show an account's balances and lotto standing",
				ArgsUsage: "[account-id-or-address]",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					return a.User(ctx, c.Args().First())
				}),
			},
			{
				Name:  "health",
				Usage: "check mirror and contract reachability",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					return a.Health(ctx)
				}),
			},
			{
				Name:  "info",
				Usage: "print environment, operator and contract wiring",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					return a.Info(ctx)
				}),
			},
			adminCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if multisig.IsExported(err) {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func adminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "pool administration (requires admin rights on the contract)",
		Subcommands: []*cli.Command{
			{
				Name:      "pause-pool",
				ArgsUsage: "<pool-id>",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					poolID, err := poolIDArg(c)
					if err != nil {
						return err
					}
					return a.PausePool(ctx, poolID)
				}),
			},
			{
				Name:      "unpause-pool",
				ArgsUsage: "<pool-id>",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					poolID, err := poolIDArg(c)
					if err != nil {
						return err
					}
					return a.UnpausePool(ctx, poolID)
				}),
			},
			{
				Name:      "close-pool",
				ArgsUsage: "<pool-id>",
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					poolID, err := poolIDArg(c)
					if err != nil {
						return err
					}
					return a.ClosePool(ctx, poolID)
				}),
			},
			{
				Name:      "add-prizes",
				Usage:     "fund a pool with prize packages",
				ArgsUsage: "<pool-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Value: "HBAR", Usage: "prize token id, or HBAR"},
					&cli.Int64Flag{Name: "amount", Required: true, Usage: "amount per package, in base units"},
					&cli.Int64Flag{Name: "count", Value: 1, Usage: "number of identical packages"},
				},
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					poolID, err := poolIDArg(c)
					if err != nil {
						return err
					}
					token, err := resolveToken(ctx, a, c.String("token"))
					if err != nil {
						return err
					}
					return a.AddPrizes(ctx, poolID, token, c.Int64("amount"), c.Int64("count"))
				}),
			},
			{
				Name:      "set-bonus",
				Usage:     "configure a win-rate bonus on the pool manager",
				ArgsUsage: "<time|nft|lazy-balance>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Usage: "NFT collection (nft bonus only)"},
					&cli.Int64Flag{Name: "threshold", Usage: "window start (time) or minimum balance (lazy-balance)"},
					&cli.Int64Flag{Name: "multiplier-bps", Required: true, Usage: "bonus multiplier in basis points"},
				},
				Action: withApp(func(ctx context.Context, a *commands.App, c *cli.Context) error {
					kind := commands.BonusKind(c.Args().First())
					var token *refs.TokenRef
					if s := c.String("token"); s != "" {
						resolved, err := resolveToken(ctx, a, s)
						if err != nil {
							return err
						}
						token = &resolved
					}
					return a.SetBonus(ctx, kind, token, c.Int64("threshold"), c.Int64("multiplier-bps"))
				}),
			},
		},
	}
}

func poolIDArg(c *cli.Context) (int64, error) {
	if c.Args().Len() == 0 {
		return 0, fmt.Errorf("pool id argument required")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("pool id %q: want a non-negative integer", c.Args().First())
	}
	return id, nil
}

func resolveToken(ctx context.Context, a *commands.App, arg string) (refs.TokenRef, error) {
	if strings.EqualFold(strings.TrimSpace(arg), "HBAR") {
		return refs.Hbar, nil
	}
	token, err := refs.ParseToken(arg)
	if err != nil {
		return refs.TokenRef{}, err
	}
	meta, err := a.Mirror.TokenInfo(ctx, token.ID)
	if err != nil {
		return refs.TokenRef{}, fmt.Errorf("token %s: %w", token.String(), err)
	}
	return meta.Ref, nil
}

// withApp wires the full stack once per invocation and hands the command a
// ready App.
func withApp(fn func(ctx context.Context, a *commands.App, c *cli.Context) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := godotenv.Load(c.String("env-file")); err != nil && c.IsSet("env-file") {
			return fmt.Errorf("loading %s: %w", c.String("env-file"), err)
		}

		logger, err := logging.NewZapLogger(logging.Development, "lotto")
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		a, err := buildApp(c, logger)
		if err != nil {
			return err
		}
		return fn(context.Background(), a, c)
	}
}

func buildApp(c *cli.Context, logger logging.Logger) (*commands.App, error) {
	environment, err := network.ParseEnvironment(env.GetEnvString("ENVIRONMENT", "TEST"))
	if err != nil {
		return nil, err
	}
	operator, err := network.ParseOperator(os.Getenv("ACCOUNT_ID"), os.Getenv("PRIVATE_KEY"))
	if err != nil {
		return nil, err
	}
	client, err := network.NewClient(environment, operator)
	if err != nil {
		return nil, err
	}

	httpClient, err := httpclient.New(nil, logger)
	if err != nil {
		return nil, err
	}
	mirrorAdapter := mirror.New(environment.MirrorBaseURL(), httpClient, logger)

	wiring, err := wiringFromEnv(context.Background(), mirrorAdapter)
	if err != nil {
		return nil, err
	}

	operatorRef := refs.AccountFromID(operator.Account)
	p := pipeline.New(client, mirrorAdapter, operatorRef, logger)
	writer := preflight.NewClientWriter(client, operatorRef)
	pre := preflight.New(mirrorAdapter, writer, operatorRef, preflight.Wiring{
		LazyToken:  wiring.LazyToken,
		GasStation: wiring.GasStation,
		Storage:    wiring.Storage,
	}, logger)

	submitter, err := buildSubmitter(c, client, logger)
	if err != nil {
		return nil, err
	}

	return &commands.App{
		Environment: environment,
		Operator:    operatorRef,
		Client:      client,
		Mirror:      mirrorAdapter,
		Pipeline:    p,
		Preflight:   pre,
		Artifacts:   artifacts.NewRegistry(env.GetEnvString("ARTIFACT_DIR", "artifacts")),
		Wiring:      wiring,
		Logger:      logger,
		Submitter:   submitter,
		JSON:        c.Bool("json"),
		Out:         os.Stdout,
	}, nil
}

// wiringFromEnv resolves the deployed contract set the commands run against.
// Main, storage, gas station and the LAZY token are required; the pool
// manager is optional (older deployments predate it).
func wiringFromEnv(ctx context.Context, m *mirror.Adapter) (commands.Wiring, error) {
	var w commands.Wiring
	var err error

	if w.Main, err = requiredContract("LAZY_LOTTO_CONTRACT_ID"); err != nil {
		return w, err
	}
	if w.Storage, err = requiredContract("LAZY_LOTTO_STORAGE"); err != nil {
		return w, err
	}
	if w.GasStation, err = requiredContract("LAZY_GAS_STATION_CONTRACT_ID"); err != nil {
		return w, err
	}
	if raw := os.Getenv("LAZY_LOTTO_POOL_MANAGER_ID"); raw != "" {
		pm, err := refs.ParseContract(raw)
		if err != nil {
			return w, fmt.Errorf("LAZY_LOTTO_POOL_MANAGER_ID: %w", err)
		}
		w.PoolManager = &pm
	}

	rawToken := os.Getenv("LAZY_TOKEN_ID")
	if rawToken == "" {
		return w, fmt.Errorf("LAZY_TOKEN_ID is required")
	}
	token, err := refs.ParseToken(rawToken)
	if err != nil {
		return w, fmt.Errorf("LAZY_TOKEN_ID: %w", err)
	}
	meta, err := m.TokenInfo(ctx, token.ID)
	if err != nil {
		return w, fmt.Errorf("LAZY token metadata: %w", err)
	}
	w.LazyToken = meta.Ref
	return w, nil
}

func requiredContract(key string) (refs.ContractRef, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return refs.ContractRef{}, fmt.Errorf("%s is required", key)
	}
	ref, err := refs.ParseContract(raw)
	if err != nil {
		return refs.ContractRef{}, fmt.Errorf("%s: %w", key, err)
	}
	return ref, nil
}

// buildSubmitter selects the transaction route: nil for plain operator
// signing, or a multi-sig coordinator in one of its three modes
// (interactive collection, offline export, offline assembly).
func buildSubmitter(c *cli.Context, client *hedera.Client, logger logging.Logger) (pipeline.Submitter, error) {
	if !c.Bool("multisig") {
		return nil, nil
	}
	threshold := c.Int("threshold")
	if threshold < 1 {
		return nil, fmt.Errorf("--threshold must be at least 1, got %d", threshold)
	}

	var signers []keys.Source
	for _, path := range splitList(c.String("signers")) {
		signers = append(signers, keys.EncryptedFileSource{Path: path})
	}
	coordinator := multisig.New(client, threshold, signers, logger)

	switch c.String("workflow") {
	case "interactive":
		if len(signers) == 0 {
			return nil, fmt.Errorf("interactive multi-sig needs --signers")
		}
		return coordinator, nil
	case "offline":
		if c.Bool("export-only") {
			return &multisig.ExportSubmitter{Coordinator: coordinator, Base: c.String("export")}, nil
		}
		signatures := splitList(c.String("signatures"))
		if len(signatures) == 0 {
			return nil, fmt.Errorf("offline multi-sig needs --export-only or --signatures")
		}
		return &multisig.OfflineSubmitter{
			Coordinator:    coordinator,
			FrozenPath:     c.String("export") + ".bin",
			SignaturePaths: signatures,
		}, nil
	default:
		return nil, fmt.Errorf("unknown workflow %q (want interactive or offline)", c.String("workflow"))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
