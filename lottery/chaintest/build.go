package chaintest

import (
	"encoding/hex"
	"sort"

	"github.com/dcSpark/smartcontract-lottery/lottery/artifacts"
	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
)

// ContractNames lists the contracts chaintest has models for.
func ContractNames() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteArtifacts writes a build artifact for every modelled contract. Their
// bytecode deploys the model on a Chain.
func WriteArtifacts(build *artifacts.Build) error {
	for _, name := range ContractNames() {
		parsed, err := abiJSON(name)
		if err != nil {
			return err
		}
		a := &artifacts.Artifact{
			ContractName:     name,
			ABI:              parsed,
			Bytecode:         hex.EncodeToString(Bytecode(name)),
			DeployedBytecode: hex.EncodeToString(Bytecode(name)),
		}
		if err := build.Save(a); err != nil {
			return err
		}
	}
	return nil
}

func abiJSON(name string) ([]byte, error) {
	switch name {
	case bindings.LotteryName:
		return []byte(bindings.LotteryABI), nil
	case bindings.NFTLotteryName:
		return []byte(bindings.NFTLotteryABI), nil
	case bindings.MockV3AggregatorName:
		return []byte(bindings.MockV3AggregatorABI), nil
	case bindings.LinkTokenName:
		return []byte(bindings.LinkTokenABI), nil
	case bindings.VRFCoordinatorMockName:
		return []byte(bindings.VRFCoordinatorMockABI), nil
	case bindings.VRFCoordinatorV2MockName:
		return []byte(bindings.VRFCoordinatorV2MockABI), nil
	case bindings.MockERC721Name:
		return []byte(bindings.ERC721ABI), nil
	}
	_, err := bindings.ABI(name)
	return nil, err
}
