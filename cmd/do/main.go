package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/templui/ressona/cmd/do/cmd"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Development and operations tools for ressona",
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			return godotenv.Overload(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment overrides from this file")

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.TokenCmd())
	rootCmd.AddCommand(cmd.CoherenceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
