package cmd

import (
	"fmt"
	"go/types"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/cmd/utils"
	"github.com/starkescrow/starkescrow/internal/serve"
)

type serveCmd struct{}

func (c *serveCmd) Command() *cobra.Command {
	cfg := serve.Configs{}

	var sentryDSN string
	var environment string
	var submitRequestsPerMinute int
	var rpcReadyAttempts int
	cfgOpts := config.ConfigOptions{
		utils.DatabaseURLOption(&cfg.DatabaseURL),
		utils.LogLevelOption(&cfg.LogLevel),
		utils.PollIntervalOption(&cfg.PollInterval),
		utils.SentryDSNOption(&sentryDSN),
		utils.EnvironmentOption(&environment),
		{
			Name:        "port",
			Usage:       "Port to listen and serve on",
			OptType:     types.Int,
			ConfigKey:   &cfg.Port,
			FlagDefault: 8001,
			Required:    false,
		},
		{
			Name:        "rpc-ready-attempts",
			Usage:       "How many times the RPC node is probed before the server gives up starting.",
			OptType:     types.Int,
			ConfigKey:   &rpcReadyAttempts,
			FlagDefault: 10,
			Required:    false,
		},
		{
			Name:        "max-observers",
			Usage:       "The maximum number of transaction receipts polled concurrently. Further observations queue.",
			OptType:     types.Int,
			ConfigKey:   &cfg.MaxObservers,
			FlagDefault: 16,
			Required:    false,
		},
		{
			Name:        "reader-workers",
			Usage:       "The number of workers loading escrows from the contract in parallel.",
			OptType:     types.Int,
			ConfigKey:   &cfg.ReaderWorkers,
			FlagDefault: 8,
			Required:    false,
		},
		{
			Name:           "escrow-cache-ttl",
			Usage:          `How long a loaded escrow is served from cache, e.g. "10s".`,
			OptType:        types.String,
			ConfigKey:      &cfg.EscrowCacheTTL,
			CustomSetValue: utils.SetConfigOptionDuration,
			FlagDefault:    "10s",
			Required:       false,
		},
		{
			Name:        "submit-requests-per-minute",
			Usage:       "Submissions and fee estimates each client may send per minute.",
			OptType:     types.Int,
			ConfigKey:   &submitRequestsPerMinute,
			FlagDefault: 60,
			Required:    false,
		},
		{
			Name:        "submit-burst",
			Usage:       "Submissions a client may send at once before the per minute rate applies.",
			OptType:     types.Int,
			ConfigKey:   &cfg.SubmitRateLimit.Burst,
			FlagDefault: 1,
			Required:    false,
		},
		{
			Name:      "client-auth-public-key",
			Usage:     "A PEM encoded ECDSA public key whose private key signs the JWTs sent with submissions. If empty, authentication is disabled.",
			OptType:   types.String,
			ConfigKey: &cfg.ClientAuthPublicKey,
			Required:  false,
		},
		{
			Name:        "client-auth-max-timeout-seconds",
			Usage:       "The maximum timeout for client authentication.",
			OptType:     types.Int,
			ConfigKey:   &cfg.ClientAuthMaxTimeoutSeconds,
			FlagDefault: 15,
			Required:    true,
		},
		{
			Name:           "allowed-origins",
			Usage:          `A comma-separated list of origin patterns allowed to open attempt streams, e.g. "app.starkescrow.xyz,localhost:*". Same origin requests are always allowed.`,
			OptType:        types.String,
			ConfigKey:      &cfg.OriginPatterns,
			CustomSetValue: utils.SetConfigOptionStringList,
			Required:       false,
		},
	}
	cfgOpts = append(cfgOpts, utils.StarknetOptions(&cfg.RPCURL, &cfg.Network, &cfg.EscrowContractAddress, &cfg.TokenAddress)...)
	cfgOpts = append(cfgOpts, utils.WalletOptions(&cfg.WalletType, &cfg.WalletBridgeURL)...)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the StarkEscrow server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.DefaultPersistentPreRunE(cfgOpts)(cmd, args); err != nil {
				return err
			}
			log.DefaultLogger.SetLevel(cfg.LogLevel)

			if rpcReadyAttempts > 0 {
				cfg.RPCReadyAttempts = uint(rpcReadyAttempts)
			}
			cfg.SubmitRateLimit.RequestsPerMinute = float64(submitRequestsPerMinute)

			appTracker, err := utils.NewAppTracker(sentryDSN, environment)
			if err != nil {
				return err
			}
			cfg.AppTracker = appTracker

			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Run(cfg)
		},
	}

	if err := cfgOpts.Init(cmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

func (c *serveCmd) Run(cfg serve.Configs) error {
	err := serve.Serve(cfg)
	if err != nil {
		return fmt.Errorf("running serve: %w", err)
	}
	return nil
}
