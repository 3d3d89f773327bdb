package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/leadline/internal/cli"
	"github.com/cloo-solutions/leadline/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "leadlined",
		Short: "Leadline daemon and admin CLI",
		Long:  "Leadline daemon for running the API server, ingestion workers and tenant administration",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.TenantCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
