package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "brownie-config.yaml"

var (
	ErrUnknownNetwork = errors.New("unknown network")
	ErrMissingField   = errors.New("missing network config field")
)

// Config keys of a network section. They double as the contract keys
// understood by the contract resolver.
const (
	KeyPriceFeed        = "eth_usd_price_feed"
	KeyVRFCoordinator   = "vrf_coordinator"
	KeyVRFCoordinatorV2 = "vrf_coordinator_v2"
	KeyLinkToken        = "link_token"
	KeyNFTCollection    = "nft_collection"
	KeyFee              = "fee"
	KeyKeyHash          = "key_hash"
	KeyGasLane          = "gas_lane"
	KeySubscriptionID   = "subscription_id"
	KeyCallbackGasLimit = "callback_gas_limit"
	KeyInterval         = "interval"
)

// Config is a parsed brownie-config.yaml.
type Config struct {
	Dotenv      string   `yaml:"dotenv"`
	DevMnemonic string   `yaml:"dev_mnemonic"`
	Wallets     Wallets  `yaml:"wallets"`
	Networks    Networks `yaml:"networks"`

	path string
	raw  []byte
}

type Wallets struct {
	FromKey string `yaml:"from_key"`
}

// Networks holds the per-network sections plus the name of the default network,
// which Brownie keeps under the same key.
type Networks struct {
	Default string
	Entries map[string]*NetworkConfig
}

func (n *Networks) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: networks must be a mapping", value.Line)
	}
	n.Entries = make(map[string]*NetworkConfig)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if key.Value == "default" {
			n.Default = val.Value
			continue
		}
		nc := new(NetworkConfig)
		if err := val.Decode(nc); err != nil {
			return fmt.Errorf("network %s: %w", key.Value, err)
		}
		nc.Name = key.Value
		n.Entries[key.Value] = nc
	}
	return nil
}

// NetworkConfig is one entry of the networks section.
type NetworkConfig struct {
	Name string `yaml:"-"`

	Host    string `yaml:"host"`
	ChainID uint64 `yaml:"chain_id"`

	EthUsdPriceFeed  string `yaml:"eth_usd_price_feed"`
	VRFCoordinator   string `yaml:"vrf_coordinator"`
	VRFCoordinatorV2 string `yaml:"vrf_coordinator_v2"`
	LinkToken        string `yaml:"link_token"`
	NFTCollection    string `yaml:"nft_collection"`

	Fee              *BigInt `yaml:"fee"`
	KeyHash          string  `yaml:"key_hash"`
	GasLane          string  `yaml:"gas_lane"`
	SubscriptionID   uint64  `yaml:"subscription_id"`
	CallbackGasLimit uint32  `yaml:"callback_gas_limit"`
	Interval         *BigInt `yaml:"interval"`

	Verify bool `yaml:"verify"`
}

// BigInt decodes integers of any size, which Brownie configs use for wei amounts.
type BigInt struct {
	*big.Int
}

func NewBigInt(x int64) *BigInt {
	return &BigInt{big.NewInt(x)}
}

func (b *BigInt) UnmarshalYAML(value *yaml.Node) error {
	v, ok := new(big.Int).SetString(value.Value, 0)
	if !ok {
		return fmt.Errorf("line %d: invalid integer %q", value.Line, value.Value)
	}
	b.Int = v
	return nil
}

func (b *BigInt) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// BigOr returns the value, or def when the field is not set.
func (b *BigInt) BigOr(def *big.Int) *big.Int {
	if b == nil || b.Int == nil {
		return def
	}
	return b.Int
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the config file at path. If it names a dotenv file, that file is
// loaded first (relative to the config) without overriding existing variables,
// and ${VAR} references are replaced from the environment.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var head struct {
		Dotenv string `yaml:"dotenv"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if head.Dotenv != "" {
		envPath := head.Dotenv
		if !filepath.IsAbs(envPath) {
			envPath = filepath.Join(filepath.Dir(path), envPath)
		}
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load dotenv %s: %w", envPath, err)
		}
	}

	expanded := envVarPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		if v, ok := os.LookupEnv(string(name)); ok {
			return []byte(v)
		}
		return m
	})

	cfg := &Config{path: path, raw: raw}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Networks.Entries == nil {
		cfg.Networks.Entries = make(map[string]*NetworkConfig)
	}
	return cfg, nil
}

// Path is the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Network returns the named network section. An empty name selects the
// configured default. Networks without a section get an empty one so that
// local chains work without any configuration.
func (c *Config) Network(name string) (*NetworkConfig, error) {
	if name == "" {
		name = c.Networks.Default
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no network given and no default configured", ErrUnknownNetwork)
	}
	if nc, ok := c.Networks.Entries[name]; ok {
		return nc, nil
	}
	return &NetworkConfig{Name: name}, nil
}

// NetworkNames lists the configured networks in order.
func (c *Config) NetworkNames() []string {
	names := maps.Keys(c.Networks.Entries)
	slices.Sort(names)
	return names
}

// ToJSON writes the config document as JSON for the front end. The document is
// written as found on disk, without environment expansion, so secrets
// referenced as ${VAR} do not leak into the front end.
func (c *Config) ToJSON(path string) error {
	var doc interface{}
	if err := yaml.Unmarshal(c.raw, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.path, err)
	}
	data, err := json.Marshal(normalize(doc))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// normalize turns maps with non-string keys into JSON encodable ones.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []interface{}:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

// Address returns the configured address of a contract key.
func (n *NetworkConfig) Address(key string) (common.Address, error) {
	var s string
	switch key {
	case KeyPriceFeed:
		s = n.EthUsdPriceFeed
	case KeyVRFCoordinator:
		s = n.VRFCoordinator
	case KeyVRFCoordinatorV2:
		s = n.VRFCoordinatorV2
	case KeyLinkToken:
		s = n.LinkToken
	case KeyNFTCollection:
		s = n.NFTCollection
	default:
		return common.Address{}, fmt.Errorf("%s is not an address key", key)
	}
	if s == "" {
		return common.Address{}, fmt.Errorf("%w: networks.%s.%s", ErrMissingField, n.Name, key)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("networks.%s.%s: invalid address %q", n.Name, key, s)
	}
	return common.HexToAddress(s), nil
}

func (n *NetworkConfig) KeyHashValue() common.Hash {
	return common.HexToHash(n.KeyHash)
}

func (n *NetworkConfig) GasLaneValue() common.Hash {
	return common.HexToHash(n.GasLane)
}

// CheckLive verifies that every given key is set, reporting all missing ones.
func (n *NetworkConfig) CheckLive(keys ...string) error {
	var result *multierror.Error
	for _, key := range keys {
		var set bool
		switch key {
		case KeyPriceFeed, KeyVRFCoordinator, KeyVRFCoordinatorV2, KeyLinkToken, KeyNFTCollection:
			_, err := n.Address(key)
			if err != nil && !errors.Is(err, ErrMissingField) {
				result = multierror.Append(result, err)
				continue
			}
			set = err == nil
		case KeyFee:
			set = n.Fee != nil && n.Fee.Int != nil
		case KeyKeyHash:
			set = n.KeyHash != ""
		case KeyGasLane:
			set = n.GasLane != ""
		case KeySubscriptionID:
			set = n.SubscriptionID != 0
		case KeyCallbackGasLimit:
			set = n.CallbackGasLimit != 0
		case KeyInterval:
			set = n.Interval != nil && n.Interval.Int != nil
		default:
			result = multierror.Append(result, fmt.Errorf("unknown config key %s", key))
			continue
		}
		if !set {
			result = multierror.Append(result, fmt.Errorf("%w: networks.%s.%s", ErrMissingField, n.Name, key))
		}
	}
	return result.ErrorOrNil()
}
