package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	websmith "github.com/pcak20/websmith-frontend-v2-sub001"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "websmith",
		Short:         "Resilient API client toolkit for the website builder backend",
		Version:       websmith.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var flags globalFlags
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config file (defaults plus WEBSMITH_* env when empty)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load before reading config")

	root.AddCommand(
		newProbeCmd(&flags),
		newServeCmd(&flags),
		newHistoryCmd(&flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), websmith.GetVersion())
			return nil
		},
	}
}
