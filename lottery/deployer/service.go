package deployer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	lotcrypto "github.com/dcSpark/smartcontract-lottery/lottery-service/crypto"
	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/artifacts"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/frontend"
	"github.com/dcSpark/smartcontract-lottery/lottery/metrics"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

// DefaultLocalRPC is where local chains are expected when the network section
// names no host.
const DefaultLocalRPC = "http://127.0.0.1:8545"

// Project is the loaded project config with the active network.
type Project struct {
	Config        *config.Config
	Network       string
	NetworkConfig *config.NetworkConfig
}

// LoadProject loads the project config and selects the network.
func LoadProject(cfg CLIConfig) (*Project, error) {
	project, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	nc, err := project.Network(cfg.Network)
	if err != nil {
		return nil, err
	}
	return &Project{Config: project, Network: nc.Name, NetworkConfig: nc}, nil
}

// RPCURL picks the endpoint of the active network.
func (p *Project) RPCURL(override string) (string, error) {
	switch {
	case override != "":
		return override, nil
	case p.NetworkConfig.Host != "":
		return p.NetworkConfig.Host, nil
	case network.IsLocal(p.Network) || network.IsForked(p.Network):
		return DefaultLocalRPC, nil
	default:
		return "", fmt.Errorf("%w: no host for network %s, pass an rpc url", config.ErrMissingField, p.Network)
	}
}

// FrontEnd returns the exporter of the build dir to the front end.
func (p *Project) FrontEnd(l log.Logger, cfg CLIConfig) *frontend.Exporter {
	fe := frontend.DefaultConfig(cfg.BuildDir)
	if cfg.ChainInfoDir != "" {
		fe.ChainInfoDir = cfg.ChainInfoDir
	}
	if cfg.ConfigJSONPath != "" {
		fe.ConfigJSONPath = cfg.ConfigJSONPath
	}
	if cfg.FrontEndDebounce > 0 {
		fe.Debounce = cfg.FrontEndDebounce
	}
	return frontend.NewExporter(l, fe, p.Config)
}

// DeployerFromCLIConfig connects to the active network and sets up a Deployer
// sending from the selected account. prompt asks for keystore passwords and
// may be nil.
func DeployerFromCLIConfig(ctx context.Context, cfg CLIConfig, l log.Logger, m metrics.Metricer, prompt network.PassphraseFn) (*Deployer, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	project, err := LoadProject(cfg)
	if err != nil {
		return nil, err
	}
	rpcURL, err := project.RPCURL(cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	txCfg := cfg.TxMgrConfig
	txCfg.L1RPCURL = rpcURL
	if err := txCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid tx manager config: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, txCfg.NetworkTimeout)
	defer cancel()
	client, err := ethclient.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", rpcURL, err)
	}
	chainID := new(big.Int).SetUint64(txCfg.ChainID)
	if txCfg.ChainID == 0 {
		if chainID, err = client.ChainID(dialCtx); err != nil {
			client.Close()
			return nil, fmt.Errorf("could not fetch chain ID: %w", err)
		}
	}
	l = l.New("network", project.Network, "chain", chainID)

	passphrase := prompt
	if cfg.KeystorePassword != "" {
		passphrase = func(string) (string, error) { return cfg.KeystorePassword, nil }
	}
	accounts := network.NewAccounts(project.Network, project.Config, cfg.KeystoreDir, passphrase)
	newManager := func(name string, signer lotcrypto.SignerFactory, from common.Address) txmgr.TxManager {
		conf := txmgr.NewConfigFromBackend(txCfg, client, chainID, from, signer(chainID))
		return txmgr.NewSimpleTxManagerFromConfig(name, l, m, conf)
	}

	var main txmgr.TxManager
	if txCfg.PrivateKey != "" || txCfg.Mnemonic != "" {
		signer, from, err := lotcrypto.SignerFactoryFromConfig(txCfg.PrivateKey, txCfg.Mnemonic, txCfg.HDPath)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("could not init signer: %w", err)
		}
		main = newManager("deployer", signer, from)
	} else {
		account, err := accounts.Get(cfg.AccountIndex, cfg.AccountID)
		if err != nil {
			client.Close()
			return nil, err
		}
		main = newManager("deployer", account.Signer, account.Address)
	}
	l.Info("Using account", "address", main.From())

	build := artifacts.NewBuild(cfg.BuildDir)
	deployments, err := artifacts.LoadDeployments(build)
	if err != nil {
		client.Close()
		return nil, err
	}

	dcfg := DefaultConfig(project.Network, project.NetworkConfig, chainID.Uint64())
	dcfg.WinnerTimeout = cfg.WinnerTimeout
	dcfg.WinnerPollInterval = cfg.WinnerPollInterval
	dcfg.UpdateFrontEnd = cfg.UpdateFrontEnd
	if err := dcfg.Check(); err != nil {
		client.Close()
		return nil, err
	}

	d := NewDeployer(DriverSetup{
		Log:         l,
		Metr:        m,
		Cfg:         dcfg,
		TxManager:   main,
		Backend:     client,
		Build:       build,
		Deployments: deployments,
		FrontEnd:    project.FrontEnd(l, cfg),
		Managers: func(index int, id string) (txmgr.TxManager, error) {
			account, err := accounts.Get(index, id)
			if err != nil {
				return nil, err
			}
			return newManager(fmt.Sprintf("account-%d%s", index, id), account.Signer, account.Address), nil
		},
	})
	d.closeFn = client.Close
	return d, nil
}
