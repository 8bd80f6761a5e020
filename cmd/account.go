package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/domain"
	"github.com/spf13/cobra"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage pool accounts",
	}

	cmd.AddCommand(
		newAccountAddCmd(app),
		newAccountRemoveCmd(app),
		newAccountExcludeCmd(app),
		newAccountEnableCmd(app),
		newAccountListCmd(app),
	)

	return cmd
}

func newAccountAddCmd(app *app) *cobra.Command {
	var (
		poolID        string
		name          string
		provider      string
		mode          string
		maxConcurrent int
		weight        int
		secretRef     string
		secretValue   string
		secretStdin   bool
	)

	cmd := &cobra.Command{
		Use:   "add <account-id>",
		Short: "Add an account to a pool, creating the pool on first use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secretStdin {
				if secretValue != "" {
					return errors.New("--secret-value and --secret-stdin are mutually exclusive")
				}
				value, err := readSecretLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				secretValue = value
			}

			account, err := app.pools.AddAccount(cmd.Context(), application.AddAccountCommand{
				PoolID:        domain.PoolID(poolID),
				AccountID:     domain.AccountID(args[0]),
				Name:          name,
				Provider:      domain.Provider(provider),
				Mode:          domain.PoolMode(mode),
				MaxConcurrent: maxConcurrent,
				Weight:        weight,
				SecretKey:     secretRef,
				SecretValue:   secretValue,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added account %s to pool %s\n", sanitizeForTerminal(string(account.ID)), sanitizeForTerminal(string(account.PoolID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&poolID, "pool", "", "Pool ID")
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the account ID)")
	cmd.Flags().StringVar(&provider, "provider", "openai", "Provider of a new pool")
	cmd.Flags().StringVar(&mode, "mode", string(domain.PoolModeRotation), "Mode of a new pool: rotation or weighted")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Per-account in-flight cap of a new weighted pool (0 = unbounded)")
	cmd.Flags().IntVar(&weight, "weight", 1, "Selection weight in weighted pools")
	cmd.Flags().StringVar(&secretRef, "secret-ref", "", "Secret reference (defaults to <pool>/<account>)")
	cmd.Flags().StringVar(&secretValue, "secret-value", "", "Credential to store for the account")
	cmd.Flags().BoolVar(&secretStdin, "secret-stdin", false, "Read the credential from the first line of stdin")
	_ = cmd.MarkFlagRequired("pool")

	return cmd
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Remove an account and its stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.pools.RemoveAccount(cmd.Context(), domain.AccountID(args[0])); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed account %s\n", sanitizeForTerminal(args[0]))
			return nil
		},
	}
}

func newAccountExcludeCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exclude <account-id>",
		Short: "Take an account out of rotation until it is re-enabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.pools.ExcludeAccount(cmd.Context(), domain.AccountID(args[0])); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Excluded account %s\n", sanitizeForTerminal(args[0]))
			return nil
		},
	}
}

func newAccountEnableCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <account-id>",
		Short: "Return an excluded account to its pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.pools.ReenableAccount(cmd.Context(), domain.AccountID(args[0])); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Re-enabled account %s\n", sanitizeForTerminal(args[0]))
			return nil
		},
	}
}

func newAccountListCmd(app *app) *cobra.Command {
	var poolID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := loadPoolStatuses(cmd, app, poolID)
			if err != nil {
				return err
			}

			for _, status := range statuses {
				for _, view := range status.Accounts {
					account := view.Account
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
						sanitizeForTerminal(string(account.PoolID)),
						sanitizeForTerminal(string(account.ID)),
						sanitizeForTerminal(account.Name),
						account.Status,
					)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&poolID, "pool", "", "Only list accounts of this pool")

	return cmd
}

func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret from stdin: %w", err)
	}

	value := strings.TrimRight(line, "\r\n")
	if value == "" {
		return "", errors.New("secret from stdin is empty")
	}
	return value, nil
}
