package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobhound/internal/mailbox"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Credential subcommands",
}

var authGmailCmd = &cobra.Command{
	Use:   "gmail",
	Short: "Authorize Gmail access for the inbox source",
	Long:  "Runs the OAuth consent flow with the client secret at sources.inbox.credentials_path and stores the token at sources.inbox.token_path.",
	RunE:  runAuthGmail,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authGmailCmd)
}

func runAuthGmail(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()
	in := cfg.Sources.Inbox

	oauthCfg, err := mailbox.OAuthConfig(in.CredentialsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tok, err := mailbox.Authorize(ctx, oauthCfg, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("authorize gmail: %w", err)
	}
	if err := mailbox.SaveToken(in.TokenPath, tok); err != nil {
		return err
	}
	logger.Info("gmail token saved", "path", in.TokenPath)
	return nil
}
