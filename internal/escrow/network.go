package escrow

import (
	"fmt"
	"strings"
)

const (
	StrkTokenAddress = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
	TokenSymbol      = "STRK"
	TokenDecimals    = 18
)

type NetworkName string

const (
	Mainnet NetworkName = "mainnet"
	Sepolia NetworkName = "sepolia"
)

type Token struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// Network describes where the escrow contract lives and how to link to it.
type Network struct {
	Name        NetworkName `json:"name"`
	ChainID     string      `json:"chain_id"`
	Token       Token       `json:"token"`
	ExplorerURL string      `json:"explorer_url"`
}

var networks = map[NetworkName]Network{
	Mainnet: {
		Name:        Mainnet,
		ChainID:     "SN_MAIN",
		Token:       Token{Symbol: TokenSymbol, Name: "Starknet Token", Address: StrkTokenAddress, Decimals: TokenDecimals},
		ExplorerURL: "https://starkscan.co",
	},
	Sepolia: {
		Name:        Sepolia,
		ChainID:     "SN_SEPOLIA",
		Token:       Token{Symbol: TokenSymbol, Name: "Starknet Token", Address: StrkTokenAddress, Decimals: TokenDecimals},
		ExplorerURL: "https://sepolia.starkscan.co",
	},
}

func GetNetwork(name string) (Network, error) {
	network, ok := networks[NetworkName(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q, expected one of: %s, %s", name, Mainnet, Sepolia)
	}
	return network, nil
}

func (n Network) TransactionURL(hash string) string {
	return fmt.Sprintf("%s/tx/%s", n.ExplorerURL, hash)
}

func (n Network) ContractURL(address string) string {
	return fmt.Sprintf("%s/contract/%s", n.ExplorerURL, address)
}
