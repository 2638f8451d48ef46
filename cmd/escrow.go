package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/cmd/utils"
	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/serve"
	"github.com/starkescrow/starkescrow/internal/services"
	"github.com/starkescrow/starkescrow/internal/tracker"
	starkutils "github.com/starkescrow/starkescrow/internal/utils"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

var errCancelled = errors.New("cancelled")

type escrowCLIConfigs struct {
	LogLevel              logrus.Level
	DatabaseURL           string
	RPCURL                string
	Network               escrow.Network
	EscrowContractAddress string
	TokenAddress          string
	WalletType            wallet.SessionType
	WalletBridgeURL       string
	PollInterval          time.Duration
	SentryDSN             string
	Environment           string
	AssumeYes             bool
}

type escrowCmd struct{}

func (c *escrowCmd) Command() *cobra.Command {
	cfg := escrowCLIConfigs{}
	cfgOpts := config.ConfigOptions{
		utils.LogLevelOption(&cfg.LogLevel),
		utils.DatabaseURLOption(&cfg.DatabaseURL),
		utils.PollIntervalOption(&cfg.PollInterval),
		utils.SentryDSNOption(&cfg.SentryDSN),
		utils.EnvironmentOption(&cfg.Environment),
	}
	cfgOpts = append(cfgOpts, utils.StarknetOptions(&cfg.RPCURL, &cfg.Network, &cfg.EscrowContractAddress, &cfg.TokenAddress)...)
	cfgOpts = append(cfgOpts, utils.WalletOptions(&cfg.WalletType, &cfg.WalletBridgeURL)...)

	var runner *escrowRunner
	var container serve.ServiceContainer

	cmd := &cobra.Command{
		Use:   "escrow",
		Short: "Create escrows and follow their transactions from the terminal",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.DefaultPersistentPreRunE(cfgOpts)(cmd, args); err != nil {
				return err
			}
			log.DefaultLogger.SetLevel(cfg.LogLevel)

			var err error
			container, err = newEscrowContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			var confirmer utils.Confirmer = utils.AutoConfirmer{}
			if !cfg.AssumeYes {
				confirmer, err = utils.NewPromptConfirmer(os.Stdin, os.Stdout)
				if err != nil {
					return fmt.Errorf("creating confirmation prompt: %w", err)
				}
			}

			runner = newEscrowRunner(container, confirmer, cmd.OutOrStdout())
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if container != nil {
				container.Shutdown()
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&cfg.AssumeYes, "yes", "y", false, "Skip confirmation prompts")

	var input escrow.CreateEscrowInput
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Fund a new escrow from the connected wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runner.create(cmd.Context(), input)
		},
	}
	createCmd.Flags().StringVar(&input.Seller, "seller", "", "Address of the seller")
	createCmd.Flags().StringVar(&input.Arbiter, "arbiter", "", "Address of the arbiter who resolves disputes")
	createCmd.Flags().StringVar(&input.Amount, "amount", "", `Amount escrowed in whole tokens, e.g. "1.5"`)
	createCmd.Flags().StringVar(&input.Description, "description", "", "What the escrow pays for, up to 31 ASCII characters")
	for _, name := range []string{"seller", "arbiter", "amount", "description"} {
		if err := createCmd.MarkFlagRequired(name); err != nil {
			log.Fatalf("Error marking flag %s as required: %s", name, err.Error())
		}
	}
	cmd.AddCommand(createCmd)

	for _, action := range []escrow.ActionType{escrow.ActionRelease, escrow.ActionRefund, escrow.ActionDispute} {
		cmd.AddCommand(&cobra.Command{
			Use:   fmt.Sprintf("%s <escrow-id>", action),
			Short: fmt.Sprintf("%s on an escrow", action.Label()),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseEscrowID(args[0])
				if err != nil {
					return err
				}
				return runner.perform(cmd.Context(), id, action)
			},
		})
	}

	var resolveTo string
	resolveCmd := &cobra.Command{
		Use:   "resolve <escrow-id>",
		Short: "Resolve a disputed escrow as its arbiter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEscrowID(args[0])
			if err != nil {
				return err
			}
			action, err := resolveAction(resolveTo)
			if err != nil {
				return err
			}
			return runner.perform(cmd.Context(), id, action)
		},
	}
	resolveCmd.Flags().StringVar(&resolveTo, "to", "", `Who receives the funds: "seller" or "buyer"`)
	cmd.AddCommand(resolveCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <escrow-id>",
		Short: "Show an escrow and what the connected wallet may do with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEscrowID(args[0])
			if err != nil {
				return err
			}
			return runner.show(cmd.Context(), id)
		},
	})

	var role, address string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the escrows an account takes part in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runner.list(cmd.Context(), escrow.Role(strings.ToLower(role)), address)
		},
	}
	listCmd.Flags().StringVar(&role, "role", string(escrow.RoleBuyer), `The account's role: "buyer", "seller" or "arbiter"`)
	listCmd.Flags().StringVar(&address, "address", "", "The account address. Defaults to the connected wallet")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show escrow counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runner.stats(cmd.Context())
		},
	})

	var balanceAddress string
	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the token balance of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runner.balance(cmd.Context(), balanceAddress)
		},
	}
	balanceCmd.Flags().StringVar(&balanceAddress, "address", "", "The account address. Defaults to the connected wallet")
	cmd.AddCommand(balanceCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "tx-status <transaction-hash>",
		Short: "Show the finality and execution status of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.txStatus(cmd.Context(), args[0])
		},
	})

	if err := cfgOpts.Init(cmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

func newEscrowContainer(ctx context.Context, cfg escrowCLIConfigs) (serve.ServiceContainer, error) {
	appTracker, err := utils.NewAppTracker(cfg.SentryDSN, cfg.Environment)
	if err != nil {
		return nil, err
	}

	var dbProvider serve.DatabaseProvider
	if cfg.DatabaseURL != "" {
		provider, err := serve.NewDatabaseProvider(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("creating database provider: %w", err)
		}
		dbProvider = provider
	}

	container, err := serve.NewServiceContainer(ctx, serve.ServiceDependencies{
		DatabaseProvider:      dbProvider,
		HTTPClientProvider:    serve.NewHTTPClientProvider(),
		RPCURL:                cfg.RPCURL,
		Network:               cfg.Network,
		EscrowContractAddress: cfg.EscrowContractAddress,
		TokenAddress:          cfg.TokenAddress,
		WalletType:            cfg.WalletType,
		WalletBridgeURL:       cfg.WalletBridgeURL,
		PollInterval:          cfg.PollInterval,
		MaxObservers:          1,
		AppTracker:            appTracker,
	})
	if err != nil {
		if dbProvider != nil {
			_ = dbProvider.Close()
		}
		return nil, fmt.Errorf("creating service container: %w", err)
	}
	return container, nil
}

func parseEscrowID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid escrow id %q", s)
	}
	return id, nil
}

func parseTransactionHash(s string) (string, error) {
	v, err := starkutils.ParseFelt(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid transaction hash %q", s)
	}
	return starkutils.PadFelt(v), nil
}

func resolveAction(to string) (escrow.ActionType, error) {
	switch escrow.Role(strings.ToLower(strings.TrimSpace(to))) {
	case escrow.RoleSeller:
		return escrow.ActionResolveSeller, nil
	case escrow.RoleBuyer:
		return escrow.ActionResolveBuyer, nil
	default:
		return "", fmt.Errorf(`--to must be "seller" or "buyer", got %q`, to)
	}
}

// escrowRunner backs the escrow subcommands. Submissions are confirmed, sent and then followed until the
// attempt is terminal.
type escrowRunner struct {
	service   *escrow.Service
	manager   *tracker.Manager
	rpc       services.RPCService
	session   wallet.Session
	network   escrow.Network
	confirmer utils.Confirmer
	printer   *utils.StepperPrinter
	out       io.Writer
}

func newEscrowRunner(container serve.ServiceContainer, confirmer utils.Confirmer, out io.Writer) *escrowRunner {
	network := container.GetNetwork()
	return &escrowRunner{
		service:   container.GetEscrowService(),
		manager:   container.GetAttemptManager(),
		rpc:       container.GetRPCService(),
		session:   container.GetSession(),
		network:   network,
		confirmer: confirmer,
		printer:   utils.NewStepperPrinter(out, network),
		out:       out,
	}
}

func (r *escrowRunner) create(ctx context.Context, input escrow.CreateEscrowInput) error {
	calls, err := r.service.CreateCalls(input)
	if err != nil {
		return fmt.Errorf("preparing escrow: %w", err)
	}

	fmt.Fprintf(r.out, "Escrow of %s %s for %s, arbitrated by %s: %q\n", input.Amount, r.network.Token.Symbol, input.Seller, input.Arbiter, input.Description)
	return r.submit(ctx, escrow.ActionCreate, calls, func() (tracker.Attempt, error) {
		return r.service.Create(ctx, r.session, input)
	})
}

func (r *escrowRunner) perform(ctx context.Context, id uint64, action escrow.ActionType) error {
	calls, err := r.service.ActionCalls(ctx, r.session, id, action)
	if err != nil {
		return fmt.Errorf("preparing %s on escrow %d: %w", action, id, err)
	}

	fmt.Fprintf(r.out, "%s escrow %d\n", action.Label(), id)
	return r.submit(ctx, action, calls, func() (tracker.Attempt, error) {
		return r.service.Perform(ctx, r.session, id, action)
	})
}

func (r *escrowRunner) submit(ctx context.Context, action escrow.ActionType, calls []entities.Call, send func() (tracker.Attempt, error)) error {
	if !r.session.Connected() {
		return wallet.ErrNotConnected
	}

	if fee, err := r.service.EstimateFee(ctx, r.session, calls); err != nil {
		log.Ctx(ctx).Warnf("Could not estimate the fee of %s: %v", action, err)
	} else {
		fmt.Fprintf(r.out, "Estimated fee: %s\n", escrow.EstimatedFee(fee))
	}

	ok, err := r.confirmer.Confirm(action.ConfirmPrompt())
	if err != nil {
		return fmt.Errorf("confirming %s: %w", action, err)
	}
	if !ok {
		fmt.Fprintln(r.out, "Cancelled.")
		return errCancelled
	}

	attempt, err := send()
	if err != nil {
		return err
	}

	final := attempt
	if !attempt.IsTerminal() {
		updates, cancel, err := r.manager.Subscribe(attempt.Action)
		if err != nil {
			return fmt.Errorf("following %s: %w", attempt.Action, err)
		}
		defer cancel()

		final, err = r.printer.Follow(ctx, updates, attempt.ID)
		if err != nil {
			return err
		}
	} else {
		r.printer.Print(attempt)
	}

	if final.Phase == tracker.PhaseError {
		r.printer.Failure("%s.", action.FailureMessage())
		return final.Err()
	}
	r.printer.Success("Done: %s.", action.Message())
	return nil
}

func (r *escrowRunner) show(ctx context.Context, id uint64) error {
	e, err := r.service.Reader().GetEscrow(ctx, id)
	if err != nil {
		return fmt.Errorf("loading escrow %d: %w", id, err)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%d\n", e.ID)
	fmt.Fprintf(w, "Status\t%s\n", e.Status)
	fmt.Fprintf(w, "Amount\t%s\n", e.FormattedAmount())
	fmt.Fprintf(w, "Buyer\t%s\n", e.Buyer)
	fmt.Fprintf(w, "Seller\t%s\n", e.Seller)
	fmt.Fprintf(w, "Arbiter\t%s\n", e.Arbiter)
	fmt.Fprintf(w, "Created\t%s\n", e.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Description\t%s\n", e.Description)
	if r.session.Connected() {
		actions := escrow.AvailableActions(e, r.session.Address())
		labels := make([]string, 0, len(actions))
		for _, a := range actions {
			labels = append(labels, string(a))
		}
		if len(labels) == 0 {
			labels = append(labels, "none")
		}
		fmt.Fprintf(w, "Your actions\t%s\n", strings.Join(labels, ", "))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing escrow %d: %w", id, err)
	}
	return nil
}

func (r *escrowRunner) list(ctx context.Context, role escrow.Role, address string) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}
	address, err := r.accountAddress(address)
	if err != nil {
		return err
	}

	escrows, err := r.service.Reader().ListEscrows(ctx, role, address)
	if err != nil {
		return fmt.Errorf("listing %s escrows of %s: %w", role, address, err)
	}
	if len(escrows) == 0 {
		fmt.Fprintf(r.out, "No escrows as %s.\n", role)
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tAMOUNT\tDESCRIPTION")
	for _, e := range escrows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Status, e.FormattedAmount(), e.Description)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing escrows: %w", err)
	}
	return nil
}

func (r *escrowRunner) stats(ctx context.Context) error {
	stats, err := r.service.Reader().GetStats(ctx)
	if err != nil {
		return fmt.Errorf("loading escrow stats: %w", err)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total\t%d\n", stats.Total)
	fmt.Fprintf(w, "Active\t%d\n", stats.Active)
	fmt.Fprintf(w, "Completed\t%d\n", stats.Completed)
	fmt.Fprintf(w, "Disputed\t%d\n", stats.Disputed)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing escrow stats: %w", err)
	}
	return nil
}

func (r *escrowRunner) balance(ctx context.Context, address string) error {
	address, err := r.accountAddress(address)
	if err != nil {
		return err
	}

	balance, err := r.service.Reader().BalanceOf(ctx, address)
	if err != nil {
		return fmt.Errorf("loading balance of %s: %w", address, err)
	}
	fmt.Fprintf(r.out, "%s\n", escrow.FormatFee(balance, "FRI"))
	return nil
}

func (r *escrowRunner) txStatus(ctx context.Context, hash string) error {
	normalized, err := parseTransactionHash(hash)
	if err != nil {
		return err
	}

	status, err := r.rpc.GetTransactionStatus(ctx, normalized)
	if err != nil {
		return fmt.Errorf("loading status of %s: %w", normalized, err)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Finality\t%s\n", status.FinalityStatus)
	if status.ExecutionStatus != "" {
		fmt.Fprintf(w, "Execution\t%s\n", status.ExecutionStatus)
	}
	if status.FailureReason != "" {
		fmt.Fprintf(w, "Failure reason\t%s\n", status.FailureReason)
	}
	fmt.Fprintf(w, "Explorer\t%s\n", r.network.TransactionURL(normalized))
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing status of %s: %w", normalized, err)
	}
	return nil
}

// accountAddress falls back to the connected wallet when address is empty.
func (r *escrowRunner) accountAddress(address string) (string, error) {
	if address != "" {
		return address, nil
	}
	if !r.session.Connected() {
		return "", fmt.Errorf("no --address given and %w", wallet.ErrNotConnected)
	}
	return r.session.Address(), nil
}
