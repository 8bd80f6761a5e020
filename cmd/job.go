package cmd

import (
	"fmt"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/spf13/cobra"
)

func newJobCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and cancel per-user job queues",
	}

	cmd.AddCommand(
		newJobGetCmd(app),
		newJobCancelCmd(app),
	)

	return cmd
}

func newJobGetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id> <queue-id>",
		Short: "Show whether a job queue is still active for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := app.jobs.Get(cmd.Context(), domain.UserID(args[0]), domain.QueueID(args[1]))
			if err != nil {
				return err
			}
			if queue == nil {
				return fmt.Errorf("job queue %s is not active for user %s", sanitizeForTerminal(args[1]), sanitizeForTerminal(args[0]))
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queue: %s\n", queue.QueueID)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "expires: %s\n", queue.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}

// Cancellation is broadcast; the process holding the queue's cancel
// function acts on it.
func newJobCancelCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <queue-id>",
		Short: "Broadcast a cancel request for a job queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.jobs.Cancel(cmd.Context(), domain.QueueID(args[0])); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for job queue %s\n", sanitizeForTerminal(args[0]))
			return nil
		},
	}
}
