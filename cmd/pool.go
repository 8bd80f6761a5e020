package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/domain"
	"github.com/spf13/cobra"
)

func newPoolCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect and rotate account pools",
	}

	cmd.AddCommand(
		newPoolListCmd(app),
		newPoolStatusCmd(app),
		newPoolRotateCmd(app),
		newPoolAcquireCmd(app),
	)

	return cmd
}

func newPoolListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pools, err := app.pools.ListPools(cmd.Context())
			if err != nil {
				return err
			}

			if len(pools) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No pools configured.")
				return nil
			}
			for _, pool := range pools {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", sanitizeForTerminal(string(pool.ID)), pool.Mode, sanitizeForTerminal(string(pool.Provider)))
			}
			return nil
		},
	}
}

func newPoolStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [pool-id]",
		Short: "Show pool accounts, load and rotation schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poolID := ""
			if len(args) == 1 {
				poolID = args[0]
			}

			var statuses []application.PoolStatus
			load := func(context.Context) error {
				var err error
				statuses, err = loadPoolStatuses(cmd, app, poolID)
				return err
			}

			if asJSON {
				if err := load(cmd.Context()); err != nil {
					return err
				}
			} else if err := runLoadSpinner(cmd.Context(), cmd.ErrOrStderr(), "Loading pool status...", load); err != nil {
				return err
			}

			return writePoolStatusesOutput(cmd, app, statuses, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}

func newPoolRotateCmd(app *app) *cobra.Command {
	var (
		status   string
		timeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "rotate <pool-id>",
		Short: "Rotate a rotation pool to its next account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := application.RotateOptions{RecalculateTimeOnly: timeOnly}
			if status != "" {
				parsed, err := domain.ParseAccountStatus(status)
				if err != nil {
					return err
				}
				opts.Status = parsed
			}

			result, err := app.queue.Rotate(cmd.Context(), domain.PoolID(args[0]), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Previous != nil {
				_, _ = fmt.Fprintf(out, "Rotated out %s (%s)\n", sanitizeForTerminal(string(result.Previous.ID)), result.Previous.Status)
			}
			if result.Active != nil {
				_, _ = fmt.Fprintf(out, "Active account: %s\n", sanitizeForTerminal(string(result.Active.ID)))
			} else {
				_, _ = fmt.Fprintln(out, "Active account: none")
			}
			if next := result.Pool.NextSwitchTime; next != nil {
				_, _ = fmt.Fprintf(out, "Next switch: %s\n", next.Local().Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Status the outgoing account was observed under (fast, relaxed, disabled)")
	cmd.Flags().BoolVar(&timeOnly, "time-only", false, "Only recompute the next switch time")

	return cmd
}

func newPoolAcquireCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "acquire <pool-id>",
		Short: "Resolve the account that should serve the next call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := app.acquirer.Acquire(cmd.Context(), domain.PoolID(args[0]))
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sanitizeForTerminal(string(account.ID)), sanitizeForTerminal(account.Name))
			return nil
		},
	}
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
