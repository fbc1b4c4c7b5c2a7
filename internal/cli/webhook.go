package cli

import (
	"github.com/spf13/cobra"
)

var webhookAuthHeader string

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage Helius webhooks",
}

var webhookCreateCmd = &cobra.Command{
	Use:   "create <url>",
	Short: "Register a webhook delivering pump.fun transactions to <url>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ProvisionWebhook(cmd.Context(), args[0], webhookAuthHeader)
	},
}

var webhookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered webhooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListWebhooks(cmd.Context())
	},
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a registered webhook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().DeleteWebhook(cmd.Context(), args[0])
	},
}

func init() {
	webhookCreateCmd.Flags().StringVar(&webhookAuthHeader, "auth-header", "", "Authorization header Helius sends with each delivery")

	webhookCmd.AddCommand(webhookCreateCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookDeleteCmd)
}
