/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "teamz",
	Short: "Teamz Workspace API server",
	Long:  `Backend for the Teamz Workspace collaboration app: auth, profiles, notifications, files, posts and the AI chat relay.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
