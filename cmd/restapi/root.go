package main

import (
	"fmt"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const appName = "restapi"

// NewRootCmd builds the command tree. Running the binary without a subcommand serves
// the API.
func NewRootCmd() *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "REST API for products, employees, customers and sales",
		Long: fmt.Sprintf(`%s - REST API for products, employees, customers and sales.

Configuration is read from %s* environment variables and an optional .env file.
`, appName, config.EnvPrefix),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd)
				return nil
			}
			return runServe(cmd.Context())
		},
	}

	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Print the version and exit")

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd)
		},
	}
}

func printVersion(cmd *cobra.Command) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
}
