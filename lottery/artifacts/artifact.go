package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrNoArtifact = errors.New("no build artifact")

// Artifact is the subset of a Brownie contract build file the deployer needs.
type Artifact struct {
	ContractName     string          `json:"contractName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
}

// Bytes decodes the creation bytecode. Brownie writes it without a 0x prefix.
func (a *Artifact) Bytes() ([]byte, error) {
	code := a.Bytecode
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	if code == "0x" {
		return nil, fmt.Errorf("%s has no bytecode, is it an interface?", a.ContractName)
	}
	b, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode for %s: %w", a.ContractName, err)
	}
	return b, nil
}

// Build is a Brownie build directory.
type Build struct {
	Dir string
}

func NewBuild(dir string) *Build {
	return &Build{Dir: dir}
}

func (b *Build) ContractsDir() string {
	return filepath.Join(b.Dir, "contracts")
}

func (b *Build) DeploymentsDir() string {
	return filepath.Join(b.Dir, "deployments")
}

// Load reads build/contracts/<name>.json.
func (b *Build) Load(name string) (*Artifact, error) {
	path := filepath.Join(b.ContractsDir(), name+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (run `brownie compile` first)", ErrNoArtifact, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	if a.ContractName == "" {
		a.ContractName = name
	}
	return &a, nil
}

// Save writes an artifact as build/contracts/<ContractName>.json.
func (b *Build) Save(a *Artifact) error {
	if err := os.MkdirAll(b.ContractsDir(), 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(b.ContractsDir(), a.ContractName+".json"), a)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
