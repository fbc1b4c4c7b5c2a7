package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"pump-signals/internal/webhook"
)

// ProvisionWebhook registers an enhanced-transaction webhook with Helius
// delivering pump.fun program activity to webhookURL.
func (a *App) ProvisionWebhook(ctx context.Context, webhookURL, authHeader string) error {
	client := webhook.NewHeliusClient(a.Config.Helius.APIKey)
	hook, err := client.CreateWebhook(ctx, webhookURL, authHeader)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "webhook created: %s -> %s\n", hook.WebhookID, hook.WebhookURL)
	return nil
}

// ListWebhooks prints every webhook registered under the configured API key.
func (a *App) ListWebhooks(ctx context.Context) error {
	client := webhook.NewHeliusClient(a.Config.Helius.APIKey)
	hooks, err := client.ListWebhooks(ctx)
	if err != nil {
		return err
	}
	if len(hooks) == 0 {
		fmt.Fprintln(os.Stdout, "no webhooks registered")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tType\tURL\tAccounts")
	for _, hook := range hooks {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			hook.WebhookID,
			hook.WebhookType,
			hook.WebhookURL,
			strings.Join(hook.AccountAddresses, ","),
		)
	}
	writer.Flush()
	return nil
}

// DeleteWebhook removes a registered webhook by ID.
func (a *App) DeleteWebhook(ctx context.Context, webhookID string) error {
	client := webhook.NewHeliusClient(a.Config.Helius.APIKey)
	if err := client.DeleteWebhook(ctx, webhookID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "webhook deleted: %s\n", webhookID)
	return nil
}
