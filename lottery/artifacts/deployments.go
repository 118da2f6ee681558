package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var ErrNoDeployment = errors.New("no deployment")

// deploymentMap mirrors build/deployments/map.json:
// {chain: {contractName: [address, ...]}} with the newest address first.
type deploymentMap map[string]map[string][]common.Address

// MarshalJSON writes checksummed addresses, as Brownie does.
func (m deploymentMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string][]string, len(m))
	for chain, contracts := range m {
		out[chain] = make(map[string][]string, len(contracts))
		for name, addrs := range contracts {
			hex := make([]string, len(addrs))
			for i, a := range addrs {
				hex[i] = a.Hex()
			}
			out[chain][name] = hex
		}
	}
	return json.Marshal(out)
}

// Deployment is the record written to build/deployments/<chain>/<address>.json.
type Deployment struct {
	Artifact
	Deployment DeploymentInfo `json:"deployment"`
}

type DeploymentInfo struct {
	Address     common.Address `json:"address"`
	Chain       string         `json:"chainid"`
	BlockNumber uint64         `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
}

func (i DeploymentInfo) MarshalJSON() ([]byte, error) {
	type info DeploymentInfo
	return json.Marshal(struct {
		Address string `json:"address"`
		info
	}{Address: i.Address.Hex(), info: info(i)})
}

// Deployments tracks the deployed contracts of a build directory.
type Deployments struct {
	build *Build
	mu    sync.Mutex
	m     deploymentMap
}

// LoadDeployments reads the deployment map. A missing map is an empty one.
func LoadDeployments(build *Build) (*Deployments, error) {
	d := &Deployments{build: build, m: make(deploymentMap)}
	data, err := os.ReadFile(d.mapPath())
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read deployment map: %w", err)
	}
	if err := json.Unmarshal(data, &d.m); err != nil {
		return nil, fmt.Errorf("failed to decode deployment map: %w", err)
	}
	return d, nil
}

func (d *Deployments) mapPath() string {
	return filepath.Join(d.build.DeploymentsDir(), "map.json")
}

// Latest returns the most recent deployment of name on chain, the equivalent
// of Brownie's Contract[-1].
func (d *Deployments) Latest(chain, name string) (common.Address, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	addrs := d.m[chain][name]
	if len(addrs) == 0 {
		return common.Address{}, fmt.Errorf("%w of %s on chain %s", ErrNoDeployment, name, chain)
	}
	return addrs[0], nil
}

// All returns every deployment of name on chain, newest first.
func (d *Deployments) All(chain, name string) []common.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.m[chain][name])
}

// Contracts returns the sorted names of the contracts deployed on chain.
func (d *Deployments) Contracts(chain string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := maps.Keys(d.m[chain])
	slices.Sort(names)
	return names
}

// Record stores a new deployment as the latest of its contract and persists
// both the map and the deployment record.
func (d *Deployments) Record(chain string, a *Artifact, info DeploymentInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.m[chain] == nil {
		d.m[chain] = make(map[string][]common.Address)
	}
	d.m[chain][a.ContractName] = append([]common.Address{info.Address}, d.m[chain][a.ContractName]...)

	chainDir := filepath.Join(d.build.DeploymentsDir(), chain)
	if err := os.MkdirAll(chainDir, 0o755); err != nil {
		return fmt.Errorf("failed to create deployments dir: %w", err)
	}
	info.Chain = chain
	record := Deployment{Artifact: *a, Deployment: info}
	if err := writeJSON(filepath.Join(chainDir, info.Address.Hex()+".json"), record); err != nil {
		return err
	}
	return writeJSON(d.mapPath(), d.m)
}

// Forget drops every deployment of chain. Brownie does the same for the
// ephemeral development chain when it restarts.
func (d *Deployments) Forget(chain string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.m[chain]; !ok {
		return nil
	}
	delete(d.m, chain)
	if err := os.RemoveAll(filepath.Join(d.build.DeploymentsDir(), chain)); err != nil {
		return err
	}
	if err := os.MkdirAll(d.build.DeploymentsDir(), 0o755); err != nil {
		return err
	}
	return writeJSON(d.mapPath(), d.m)
}
