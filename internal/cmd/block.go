package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendergate/tendergate/internal/server/handlers"
)

var (
	blockIPServer   string
	blockIPToken    string
	blockIPDuration string
	blockIPReason   string
)

var blockIPCmd = &cobra.Command{
	Use:   "block-ip <identity>",
	Short: "Force-block an identity on a running gateway",
	Long: `Apply an administrative block to an identity via the gateway's admin API.
The gateway must be running with an admin token configured, and the same
token must be supplied here (--token or TENDERGATE_ADMIN_TOKEN).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := strings.TrimSpace(args[0])
		if identity == "" {
			return fmt.Errorf("identity must not be empty")
		}

		token := strings.TrimSpace(blockIPToken)
		if token == "" {
			token = strings.TrimSpace(viper.GetString("admin.token"))
		}
		if token == "" {
			return fmt.Errorf("admin token is required (--token or TENDERGATE_ADMIN_TOKEN)")
		}

		if _, err := time.ParseDuration(blockIPDuration); err != nil {
			return fmt.Errorf("invalid duration %q: %w", blockIPDuration, err)
		}

		payload, err := json.Marshal(handlers.BlockRequest{
			Identity: identity,
			Duration: blockIPDuration,
			Reason:   strings.TrimSpace(blockIPReason),
		})
		if err != nil {
			return err
		}

		endpoint := strings.TrimRight(blockIPServer, "/") + "/admin/block"
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("admin request failed: %w", err)
		}
		defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read admin response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("admin request returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}

		var result handlers.BlockResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("decode admin response: %w", err)
		}

		lines := []string{
			"Identity Blocked",
			"",
			fmt.Sprintf("Identity: %s", result.Identity),
			fmt.Sprintf("Blocked until: %s", result.BlockedUntil.UTC().Format(time.RFC3339)),
			fmt.Sprintf("Violation count: %d", result.ViolationCount),
		}
		fmt.Print(ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blockIPCmd)

	blockIPCmd.Flags().StringVar(&blockIPServer, "server", "http://localhost:8080", "Gateway base URL")
	blockIPCmd.Flags().StringVar(&blockIPToken, "token", "", "Admin bearer token (defaults to TENDERGATE_ADMIN_TOKEN)")
	blockIPCmd.Flags().StringVar(&blockIPDuration, "duration", "1h", "Block duration (Go duration, e.g. 30m, 24h)")
	blockIPCmd.Flags().StringVar(&blockIPReason, "reason", "manual block", "Reason recorded on the security event")
}
