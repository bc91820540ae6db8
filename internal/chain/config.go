package chain

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions models the structure of configs/chain.yaml.
type Definitions struct {
	Chains map[string]Definition `yaml:"chains"`
}

// Definition describes a single chain endpoint plus the registrar contract
// the daily tasks are registered against.
type Definition struct {
	RPCURL      string `yaml:"rpc_url"`
	ChainID     int64  `yaml:"chain_id"`
	Registrar   string `yaml:"registrar"`
	GasLimit    uint64 `yaml:"gas_limit"`
	Description string `yaml:"description"`
}

// LoadDefinitions parses the YAML file containing chain metadata.
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return Definitions{Chains: map[string]Definition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]Definition{}
	}
	return defs, nil
}

// Select 返回指定名称的链定义；名称为空且只有一条定义时直接返回它。
func (d Definitions) Select(name string) (Definition, error) {
	name = strings.TrimSpace(name)
	if name == "" && len(d.Chains) == 1 {
		for _, def := range d.Chains {
			return def, nil
		}
	}
	if def, ok := d.Chains[name]; ok {
		return def, nil
	}
	return Definition{}, fmt.Errorf("未找到链定义: %q", name)
}
