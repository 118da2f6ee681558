package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name, bytecode string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "contracts"), 0o755))
	data, err := json.Marshal(map[string]interface{}{
		"contractName":     name,
		"abi":              []interface{}{},
		"bytecode":         bytecode,
		"deployedBytecode": bytecode,
		"sourcePath":       "contracts/" + name + ".sol",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contracts", name+".json"), data, 0o644))
}

func TestLoadArtifact(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "Lottery", "6080604052")

	a, err := NewBuild(dir).Load("Lottery")
	require.NoError(t, err)
	require.Equal(t, "Lottery", a.ContractName)
	code, err := a.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, code)
}

func TestLoadArtifactMissing(t *testing.T) {
	_, err := NewBuild(t.TempDir()).Load("Lottery")
	require.ErrorIs(t, err, ErrNoArtifact)
}

func TestArtifactWithoutBytecode(t *testing.T) {
	a := &Artifact{ContractName: "AggregatorV3Interface"}
	_, err := a.Bytes()
	require.Error(t, err)

	a.Bytecode = "0xzz"
	_, err = a.Bytes()
	require.Error(t, err)
}

func TestDeploymentsMissingMapIsEmpty(t *testing.T) {
	d, err := LoadDeployments(NewBuild(t.TempDir()))
	require.NoError(t, err)
	_, err = d.Latest("1337", "Lottery")
	require.ErrorIs(t, err, ErrNoDeployment)
	require.Empty(t, d.All("1337", "Lottery"))
}

func TestDeploymentsRecordNewestFirst(t *testing.T) {
	dir := t.TempDir()
	build := NewBuild(dir)
	d, err := LoadDeployments(build)
	require.NoError(t, err)

	a := &Artifact{ContractName: "Lottery", Bytecode: "6080"}
	first := common.HexToAddress("0x1111111111111111111111111111111111111111")
	second := common.HexToAddress("0x2222222222222222222222222222222222222222")
	require.NoError(t, d.Record("4", a, DeploymentInfo{Address: first, BlockNumber: 10}))
	require.NoError(t, d.Record("4", a, DeploymentInfo{Address: second, BlockNumber: 11}))

	latest, err := d.Latest("4", "Lottery")
	require.NoError(t, err)
	require.Equal(t, second, latest)
	require.Equal(t, []common.Address{second, first}, d.All("4", "Lottery"))

	// Reload from disk and check the persisted layout.
	reloaded, err := LoadDeployments(build)
	require.NoError(t, err)
	require.Equal(t, []common.Address{second, first}, reloaded.All("4", "Lottery"))
	require.Equal(t, []string{"Lottery"}, reloaded.Contracts("4"))

	data, err := os.ReadFile(filepath.Join(dir, "deployments", "4", second.Hex()+".json"))
	require.NoError(t, err)
	var record Deployment
	require.NoError(t, json.Unmarshal(data, &record))
	require.Equal(t, "Lottery", record.ContractName)
	require.Equal(t, second, record.Deployment.Address)
	require.Equal(t, "4", record.Deployment.Chain)
	require.Equal(t, uint64(11), record.Deployment.BlockNumber)

	var raw map[string]map[string][]string
	data, err = os.ReadFile(filepath.Join(dir, "deployments", "map.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw["4"]["Lottery"], 2)
}

func TestDeploymentsWriteChecksummedAddresses(t *testing.T) {
	dir := t.TempDir()
	d, err := LoadDeployments(NewBuild(dir))
	require.NoError(t, err)
	addr := common.HexToAddress("0x66ab6d9362d4f35596279692f0251db635165871")
	require.NoError(t, d.Record("dev", &Artifact{ContractName: "Lottery"}, DeploymentInfo{Address: addr}))

	var raw map[string]map[string][]string
	data, err := os.ReadFile(filepath.Join(dir, "deployments", "map.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, []string{"0x66aB6D9362d4F35596279692F0251Db635165871"}, raw["dev"]["Lottery"])

	var record struct {
		Deployment struct {
			Address string `json:"address"`
			Chain   string `json:"chainid"`
		} `json:"deployment"`
	}
	data, err = os.ReadFile(filepath.Join(dir, "deployments", "dev", addr.Hex()+".json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &record))
	require.Equal(t, addr.Hex(), record.Deployment.Address)
	require.Equal(t, "dev", record.Deployment.Chain)

	reloaded, err := LoadDeployments(NewBuild(dir))
	require.NoError(t, err)
	latest, err := reloaded.Latest("dev", "Lottery")
	require.NoError(t, err)
	require.Equal(t, addr, latest)
}

func TestDeploymentsForget(t *testing.T) {
	build := NewBuild(t.TempDir())
	d, err := LoadDeployments(build)
	require.NoError(t, err)
	a := &Artifact{ContractName: "LinkToken"}
	require.NoError(t, d.Record("dev", a, DeploymentInfo{Address: common.HexToAddress("0x01")}))
	require.NoError(t, d.Record("4", a, DeploymentInfo{Address: common.HexToAddress("0x02")}))

	require.NoError(t, d.Forget("dev"))
	_, err = d.Latest("dev", "LinkToken")
	require.ErrorIs(t, err, ErrNoDeployment)
	_, err = d.Latest("4", "LinkToken")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(build.DeploymentsDir(), "dev"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveThenLoad(t *testing.T) {
	build := NewBuild(t.TempDir())
	require.NoError(t, build.Save(&Artifact{ContractName: "LinkToken", ABI: json.RawMessage(`[]`), Bytecode: "0x60"}))
	a, err := build.Load("LinkToken")
	require.NoError(t, err)
	code, err := a.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x60}, code)
}
