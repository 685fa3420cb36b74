package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	storeFlag string
)

var rootCmd = &cobra.Command{
	Use:   "mergeflow",
	Short: "mergeflow: team document sharing backend",
	Long:  "mergeflow serves the team, member, group and document API, with email invitations driving self-service enrollment.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults and MERGEFLOW_* env)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "storage driver override: postgres or memory")
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
