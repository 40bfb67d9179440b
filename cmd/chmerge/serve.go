package main

import (
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/config"
	"github.com/frozenspider/chat-history-manager-backend/internal/adminapi"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server for submitting and tracking merge jobs",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	adminapi.LogDefaultCredentialWarnings(logger)
	jobs := adminapi.NewJobManager(logger)
	api, err := adminapi.NewAdminAPI(jobs, logger)
	if err != nil {
		return fmt.Errorf("starting admin API: %w", err)
	}
	return api.StartServer(config.AdminPort)
}
