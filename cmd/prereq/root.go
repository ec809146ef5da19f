package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/code-payments/solana-prereq/pkg/metrics"
	"github.com/code-payments/solana-prereq/pkg/rate"
	"github.com/code-payments/solana-prereq/pkg/solana"
	"github.com/code-payments/solana-prereq/pkg/solana/keyfile"
	"github.com/code-payments/solana-prereq/pkg/wallet"
)

// cli holds the state shared by subcommands once the root command has
// loaded its configuration.
type cli struct {
	v          *viper.Viper
	newClient  clientCtor
	configPath string

	config  Config
	env     solana.Environment
	client  solana.Client
	wallet  *wallet.Wallet
	metrics *newrelic.Application

	ctx    context.Context
	endTxn func()
}

type clientCtor func(solana.Environment, rate.Limiter) solana.Client

// NewRootCmd returns the prereq command line against live clusters.
func NewRootCmd() *cobra.Command {
	return newRootCmd(func(env solana.Environment, limiter rate.Limiter) solana.Client {
		return solana.NewRateLimited(string(env), limiter)
	})
}

func newRootCmd(newClient clientCtor) *cobra.Command {
	c := &cli{
		v:         newViper(),
		newClient: newClient,
		ctx:       context.Background(),
		endTxn:    func() {},
	}

	rootCmd := &cobra.Command{
		Use:           "prereq",
		Short:         "Solana prerequisite workflows",
		Long:          "Generate a wallet, fund it on devnet, enroll with the prereq program and move lamports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.teardown()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("cluster", "", "Cluster moniker or JSON RPC endpoint (overrides SOLANA_RPC_ENDPOINT)")
	rootCmd.PersistentFlags().String("wallet", "", "Wallet keypair file (overrides WALLET_PATH)")
	_ = c.v.BindPFlag("solana_rpc_endpoint", rootCmd.PersistentFlags().Lookup("cluster"))
	_ = c.v.BindPFlag("wallet_path", rootCmd.PersistentFlags().Lookup("wallet"))

	rootCmd.AddCommand(
		c.keygenCmd(),
		c.base58ToWalletCmd(),
		c.walletToBase58Cmd(),
		c.balanceCmd(),
		c.airdropCmd(),
		c.enrollCmd(),
		c.updateCmd(),
		c.statusCmd(),
		c.transferCmd(),
	)

	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	config, err := loadConfig(c.v, c.configPath)
	if err != nil {
		return err
	}
	c.config = config

	c.metrics = newMetricsProvider(config)
	configureLogger(config, c.metrics)
	logrus.SetOutput(cmd.ErrOrStderr())

	c.env = solana.EnvironmentFromString(config.Cluster)
	c.client = c.newClient(c.env, newLimiter(config))
	c.wallet = wallet.New(c.client, wallet.WithEnvConfigs())
	c.ctx, c.endTxn = metrics.NewContext(cmd.Context(), c.metrics, "cli/"+cmd.Name())

	logrus.StandardLogger().WithFields(logrus.Fields{
		"type":    "cmd/prereq",
		"cluster": c.env.Cluster(),
	}).Debug("configured")

	return nil
}

func (c *cli) teardown() {
	c.endTxn()
	if c.metrics != nil {
		c.metrics.Shutdown(10 * time.Second)
	}
}

func (c *cli) loadWallet() (ed25519.PrivateKey, error) {
	key, err := keyfile.Load(c.config.WalletPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading wallet %s", c.config.WalletPath)
	}
	return key, nil
}

func (c *cli) printTransaction(cmd *cobra.Command, action string, sig solana.Signature) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s! Check out your TX here:\n%s\n", action, c.env.ExplorerURL(sig))
}

func (c *cli) keygenCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new wallet keypair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := wallet.Keygen()
			if err != nil {
				return err
			}

			encoded, err := keyfile.Marshal(key)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "You've generated a new Solana wallet: %s\n", base58.Encode(key.Public().(ed25519.PublicKey)))

			if out == "" {
				fmt.Fprintf(w, "To save your wallet, copy and paste the following into a JSON file:\n%s\n", encoded)
				return nil
			}

			if err := writeKeyfile(out, encoded); err != nil {
				return err
			}
			fmt.Fprintf(w, "Saved to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the keypair to this file instead of printing it")
	return cmd
}

func (c *cli) base58ToWalletCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "base58-to-wallet <private-key>",
		Short: "Convert a base58 private key into a keypair file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keyfile.FromBase58(args[0])
			if err != nil {
				return err
			}

			encoded, err := keyfile.Marshal(key)
			if err != nil {
				return err
			}

			if out == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", encoded)
				return nil
			}
			return writeKeyfile(out, encoded)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the keypair to this file instead of printing it")
	return cmd
}

func (c *cli) walletToBase58Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet-to-base58 [keypair-file]",
		Short: "Print the base58 private key of a keypair file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.config.WalletPath
			if len(args) == 1 {
				path = args[0]
			}

			key, err := keyfile.Load(path)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), keyfile.ToBase58(key))
			return nil
		},
	}
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Print the lamport balance of an address, or of the wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner ed25519.PublicKey
			if len(args) == 1 {
				decoded, err := decodeAddress(args[0])
				if err != nil {
					return err
				}
				owner = decoded
			} else {
				key, err := c.loadWallet()
				if err != nil {
					return err
				}
				owner = key.Public().(ed25519.PublicKey)
			}

			balance, err := c.client.GetBalance(owner)
			if err != nil {
				return errors.Wrap(err, "error getting balance")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d lamports\n", base58.Encode(owner), balance)
			return nil
		},
	}
}

func (c *cli) airdropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop",
		Short: "Request devnet lamports for the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.loadWallet()
			if err != nil {
				return err
			}

			sig, err := c.wallet.Airdrop(c.ctx, key.Public().(ed25519.PublicKey))
			if err != nil {
				return err
			}

			c.printTransaction(cmd, "Success", sig)
			return nil
		},
	}
}

func (c *cli) enrollCmd() *cobra.Command {
	var github string

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Complete the prerequisite with a github handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.loadWallet()
			if err != nil {
				return err
			}

			sig, err := c.wallet.Enroll(c.ctx, key, github)
			if err != nil {
				return err
			}

			c.printTransaction(cmd, "Enrolled", sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&github, "github", "", "Github handle to record")
	_ = cmd.MarkFlagRequired("github")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var github string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the github handle of an enrolled wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.loadWallet()
			if err != nil {
				return err
			}

			sig, err := c.wallet.Update(c.ctx, key, github)
			if err != nil {
				return err
			}

			c.printTransaction(cmd, "Updated", sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&github, "github", "", "Github handle to record")
	_ = cmd.MarkFlagRequired("github")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the prereq account of the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.loadWallet()
			if err != nil {
				return err
			}

			enrollment, enrolled, err := c.wallet.GetEnrollment(c.ctx, key.Public().(ed25519.PublicKey))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "owner:    %s\n", base58.Encode(enrollment.Owner))
			fmt.Fprintf(w, "prereq:   %s (bump %d)\n", base58.Encode(enrollment.Prereq), enrollment.Bump)
			fmt.Fprintf(w, "enrolled: %t\n", enrolled)
			return nil
		},
	}
}

func (c *cli) transferCmd() *cobra.Command {
	var (
		to     string
		amount uint64
		all    bool
		memo   string
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send lamports from the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (amount > 0) {
				return errors.New("exactly one of --amount or --all is required")
			}

			recipient, err := decodeAddress(to)
			if err != nil {
				return err
			}

			key, err := c.loadWallet()
			if err != nil {
				return err
			}

			if !all {
				sig, err := c.wallet.Transfer(c.ctx, key, recipient, amount, memo)
				if err != nil {
					return err
				}

				c.printTransaction(cmd, "Success", sig)
				return nil
			}

			sig, swept, err := c.wallet.SweepBalance(c.ctx, key, recipient, memo)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Swept %d lamports\n", swept)
			c.printTransaction(cmd, "Success", sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "Lamports to send")
	cmd.Flags().BoolVar(&all, "all", false, "Send the entire balance less the network fee")
	cmd.Flags().StringVar(&memo, "memo", "", "Optional memo")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func decodeAddress(s string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %q", s)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid address %q: %d bytes", s, len(decoded))
	}
	return decoded, nil
}

func writeKeyfile(path string, encoded []byte) error {
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return errors.Wrapf(err, "error writing %s", path)
	}
	return nil
}
