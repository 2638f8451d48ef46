package utils

import (
	"go/types"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/support/config"

	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

// DatabaseURLOption configures the attempt journal. The journal is optional, so the option has no default.
func DatabaseURLOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:      "database-url",
		Usage:     `Database connection URL for the attempt journal, e.g. "postgres://postgres@localhost:5432/starkescrow?sslmode=disable" or "sqlite3://starkescrow.db". Leave empty to disable the journal.`,
		OptType:   types.String,
		ConfigKey: configKey,
		Required:  false,
	}
}

func LogLevelOption(configKey *logrus.Level) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "log-level",
		Usage:          `The log level used in this project. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", or "PANIC".`,
		OptType:        types.String,
		FlagDefault:    "INFO",
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionLogLevel,
		Required:       false,
	}
}

func NetworkOption(configKey *escrow.Network) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "network",
		Usage:          `The Starknet network the escrow contract lives on. Options: "mainnet" or "sepolia".`,
		OptType:        types.String,
		FlagDefault:    string(escrow.Sepolia),
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionNetwork,
		Required:       true,
	}
}

func RPCURLOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "rpc-url",
		Usage:       "The URL of the Starknet JSON-RPC node.",
		OptType:     types.String,
		ConfigKey:   configKey,
		FlagDefault: "http://localhost:9545/rpc/v0_8",
		Required:    true,
	}
}

func EscrowContractAddressOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "escrow-contract-address",
		Usage:          "The address of the escrow contract.",
		OptType:        types.String,
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionFeltAddress,
		Required:       true,
	}
}

func TokenAddressOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "token-address",
		Usage:          "The address of the token escrowed by the contract. Defaults to the network's STRK token.",
		OptType:        types.String,
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionFeltAddress,
		Required:       false,
	}
}

func WalletTypeOption(configKey *wallet.SessionType) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "wallet-type",
		Usage:          `How transactions are signed. Options: "BRIDGE" (a wallet bridge holding the user's keys) or "DISCONNECTED" (read only).`,
		OptType:        types.String,
		FlagDefault:    string(wallet.BridgeSessionType),
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionWalletType,
		Required:       true,
	}
}

func WalletBridgeURLOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "wallet-bridge-url",
		Usage:       `The URL of the wallet bridge. Required when wallet-type is "BRIDGE".`,
		OptType:     types.String,
		ConfigKey:   configKey,
		FlagDefault: "http://localhost:8788",
		Required:    false,
	}
}

func PollIntervalOption(configKey *time.Duration) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "poll-interval",
		Usage:          `How often the receipt of a pending transaction is polled, e.g. "3s".`,
		OptType:        types.String,
		FlagDefault:    "3s",
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionDuration,
		Required:       false,
	}
}

func SentryDSNOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:      "tracker-dsn",
		Usage:     "The Sentry DSN. Errors are only logged when empty.",
		OptType:   types.String,
		ConfigKey: configKey,
		Required:  false,
	}
}

func EnvironmentOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "environment",
		Usage:       "The deployment environment reported to the app tracker.",
		OptType:     types.String,
		ConfigKey:   configKey,
		FlagDefault: "development",
		Required:    false,
	}
}

// StarknetOptions are the options every command talking to the escrow contract needs.
func StarknetOptions(rpcURL *string, network *escrow.Network, contract, token *string) config.ConfigOptions {
	return config.ConfigOptions{
		RPCURLOption(rpcURL),
		NetworkOption(network),
		EscrowContractAddressOption(contract),
		TokenAddressOption(token),
	}
}

// WalletOptions configure the session used to sign transactions.
func WalletOptions(walletType *wallet.SessionType, bridgeURL *string) config.ConfigOptions {
	return config.ConfigOptions{
		WalletTypeOption(walletType),
		WalletBridgeURLOption(bridgeURL),
	}
}
