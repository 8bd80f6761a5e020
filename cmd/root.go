package cmd

import (
	"github.com/spf13/cobra"
)

// skipWireAnnotation marks commands that run without loading configuration.
const skipWireAnnotation = "apool/skip-wire"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string
	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "apool",
		Short:         "Account pool rotation and cross-process event distribution",
		Long:          "apool keeps pools of provider accounts, rotates or weights which account serves each call, tracks per-account load and cooldowns, and relays job cancellations and stream events across a fleet of worker processes.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsWiring(cmd) {
				return nil
			}

			wired, err := wireApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			*app = *wired
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			app.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.apool/config.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newPoolCmd(app),
		newJobCmd(app),
		newServeCmd(app),
	)

	return rootCmd
}

func needsWiring(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipWireAnnotation] != "" {
			return false
		}
		if c.Name() == "help" || c.Name() == cobra.ShellCompRequestCmd || c.Name() == "completion" {
			return false
		}
	}
	return true
}
