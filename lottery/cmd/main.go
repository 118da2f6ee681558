package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli"
	"golang.org/x/term"

	lotservice "github.com/dcSpark/smartcontract-lottery/lottery-service"
	lotlog "github.com/dcSpark/smartcontract-lottery/lottery-service/log"
	"github.com/dcSpark/smartcontract-lottery/lottery/deployer"
	"github.com/dcSpark/smartcontract-lottery/lottery/flags"
	"github.com/dcSpark/smartcontract-lottery/lottery/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	lotlog.SetupDefaults()

	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "lottery"
	app.Usage = "Deploy and operate the smart contract lottery"
	app.Description = "Deploys the lottery against mock or live Chainlink contracts and walks it through its rounds"
	app.Commands = commands

	err := app.Run(os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// setup is shared by every command: it installs the logger and returns a
// context cancelled on interrupt.
func setup(ctx *cli.Context) (context.Context, context.CancelFunc, deployer.CLIConfig, log.Logger, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, nil, deployer.CLIConfig{}, nil, err
	}
	cfg := deployer.NewConfig(ctx)
	if err := cfg.Check(); err != nil {
		return nil, nil, deployer.CLIConfig{}, nil, fmt.Errorf("invalid CLI flags: %w", err)
	}
	l := lotlog.NewLogger(os.Stdout, cfg.LogConfig)
	log.Root().SetHandler(l.GetHandler())
	lotservice.ValidateEnvVars(flags.EnvVarPrefix, flags.Flags, l)

	c, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return c, cancel, cfg, l, nil
}

// withDeployer runs fn against a deployer connected to the selected network.
func withDeployer(fn func(context.Context, *cli.Context, *deployer.Deployer) error) cli.ActionFunc {
	return func(cliCtx *cli.Context) error {
		ctx, cancel, cfg, l, err := setup(cliCtx)
		if err != nil {
			return err
		}
		defer cancel()

		var m metrics.Metricer = metrics.NoopMetrics
		if cfg.MetricsConfig.Enabled {
			pm := metrics.NewMetrics("deployer")
			l.Info("Starting metrics server", "addr", cfg.MetricsConfig.ListenAddr, "port", cfg.MetricsConfig.ListenPort)
			go func() {
				if err := pm.Serve(ctx, cfg.MetricsConfig.ListenAddr, cfg.MetricsConfig.ListenPort); err != nil {
					l.Error("Error starting metrics server", "err", err)
				}
			}()
			pm.RecordInfo(Version)
			m = pm
		}

		d, err := deployer.DeployerFromCLIConfig(ctx, cfg, l, m, promptPassphrase)
		if err != nil {
			return err
		}
		defer d.Close()
		m.RecordUp()
		return fn(ctx, cliCtx, d)
	}
}

func promptPassphrase(id string) (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", errors.New("stdin is not a terminal, set the keystore password flag")
	}
	fmt.Fprintf(os.Stderr, "Enter the password of %s: ", id)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}
