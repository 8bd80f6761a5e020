package cmd

import (
	"encoding/json"
	"fmt"

	statusadapter "github.com/bnema/accountpool/internal/adapters/render/status"
	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/domain"
	"github.com/spf13/cobra"
)

func writePoolStatusesOutput(cmd *cobra.Command, app *app, statuses []application.PoolStatus, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	rendered, err := app.statusRenderer(statuses, statusadapter.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func loadPoolStatuses(cmd *cobra.Command, app *app, poolID string) ([]application.PoolStatus, error) {
	if poolID != "" {
		status, err := app.pools.Describe(cmd.Context(), domain.PoolID(poolID))
		if err != nil {
			return nil, err
		}
		return []application.PoolStatus{status}, nil
	}

	pools, err := app.pools.ListPools(cmd.Context())
	if err != nil {
		return nil, err
	}

	statuses := make([]application.PoolStatus, 0, len(pools))
	for _, pool := range pools {
		status, err := app.pools.Describe(cmd.Context(), pool.ID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
