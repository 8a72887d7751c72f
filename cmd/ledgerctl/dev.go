package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"coin-ledger/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().String("method", "POST", "HTTP method of the request")
	signCmd.Flags().String("path", "", "Request path, e.g. /internal/v1/credits")
	signCmd.Flags().String("body", "", "Request body (\"-\" reads stdin)")
	_ = signCmd.MarkFlagRequired("path")
}

var tokenCmd = &cobra.Command{
	Use:   "token USER_ID",
	Short: "Issue a bearer token for an app user (development)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		tokens := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
		token, expiresAt, err := tokens.Generate(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print the HMAC headers for an internal request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")
		path, _ := cmd.Flags().GetString("path")
		body, _ := cmd.Flags().GetString("body")
		if body == "-" {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			body = string(raw)
		}

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Internal.ClientID == "" || cfg.Internal.SharedSecret == "" {
			return fmt.Errorf("internal.client_id and internal.shared_secret must be set")
		}

		sig := service.NewHMACSignatureService().
			SignRequest(cfg.Internal.SharedSecret, method, path, body, time.Now().Unix(), uuid.NewString())

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "X-Client-Id: %s\n", cfg.Internal.ClientID)
		fmt.Fprintf(out, "X-Timestamp: %s\n", strconv.FormatInt(sig.Timestamp, 10))
		fmt.Fprintf(out, "X-Nonce: %s\n", sig.Nonce)
		fmt.Fprintf(out, "X-Signature: %s\n", sig.Signature)
		return nil
	},
}
