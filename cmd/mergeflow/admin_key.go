package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alecgard/mergeflow/internal/auth"
)

var adminKeyCmd = &cobra.Command{
	Use:   "admin-key",
	Short: "Generate an admin key and the bcrypt hash to configure",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := auth.GenerateKey()
		if err != nil {
			return err
		}
		hash, err := auth.HashKey(key)
		if err != nil {
			return err
		}
		fmt.Printf("key:  %s\nhash: %s\n\nSet auth.admin_key_hash (or MERGEFLOW_ADMIN_KEY_HASH) to the hash.\n", key, hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminKeyCmd)
}
