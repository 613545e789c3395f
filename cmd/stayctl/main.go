// stayctl is the operator CLI for the StayHQ notification service.
// It manages webhook subscriptions, fires test events, broadcasts
// announcements, and mints host tokens for local testing.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stayhq/stayhq/internal/auth"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	apiURL  string
	cfgFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stayctl",
	Short: "StayHQ notification service CLI",
	Long: `stayctl is the command-line interface for the StayHQ event
notification and webhook delivery service.

It manages webhook subscriptions, fires test events against registered
subscribers, and broadcasts system announcements to connected dashboards.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.stayctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if apiURL == "" {
			apiURL = viper.GetString("api_url")
		}
		if apiURL == "" {
			apiURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.stayctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "StayHQ API base URL (default http://localhost:8080)")

	rootCmd.AddCommand(subscriptionsCmd)
	rootCmd.AddCommand(testEventCmd)
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)

	subscriptionsCmd.AddCommand(subsListCmd)
	subscriptionsCmd.AddCommand(subsRegisterCmd)
	subscriptionsCmd.AddCommand(subsDeleteCmd)
}

// ── subscriptions ────────────────────────────────────────────────────────────

var subscriptionsCmd = &cobra.Command{
	Use:     "subscriptions",
	Aliases: []string{"subs"},
	Short:   "Manage webhook subscriptions",
}

var subsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all webhook subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Subscriptions []struct {
				ID                 string   `json:"id"`
				AgentName          string   `json:"agent_name"`
				WebhookURL         string   `json:"webhook_url"`
				Events             []string `json:"events"`
				IsActive           bool     `json:"is_active"`
				FailedAttempts     int      `json:"failed_attempts"`
				LastSuccessfulCall *string  `json:"last_successful_call"`
			} `json:"subscriptions"`
		}
		if err := apiGet("/api/v1/subscriptions", &out); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAGENT\tURL\tEVENTS\tACTIVE\tFAILS")
		for _, s := range out.Subscriptions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\n",
				s.ID, s.AgentName, s.WebhookURL, strings.Join(s.Events, ","), s.IsActive, s.FailedAttempts)
		}
		return w.Flush()
	},
}

var (
	regAgentName string
	regURL       string
	regEvents    []string
	regSecret    string
)

var subsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new webhook subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"agent_name":  regAgentName,
			"webhook_url": regURL,
			"events":      regEvents,
			"secret_key":  regSecret,
		}
		var out json.RawMessage
		if err := apiPost("/api/v1/subscriptions", body, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var subsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a webhook subscription (idempotent)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodDelete, apiURL+"/api/v1/subscriptions/"+args[0], nil)
		if err != nil {
			return err
		}
		return doRequest(req, nil)
	},
}

func init() {
	subsRegisterCmd.Flags().StringVar(&regAgentName, "agent", "", "Display name of the subscriber")
	subsRegisterCmd.Flags().StringVar(&regURL, "url", "", "Destination HTTPS endpoint")
	subsRegisterCmd.Flags().StringSliceVar(&regEvents, "events", nil, "Event types, e.g. booking.created,payment.received")
	subsRegisterCmd.Flags().StringVar(&regSecret, "secret", "", "Shared secret for signature verification")
	_ = subsRegisterCmd.MarkFlagRequired("agent")
	_ = subsRegisterCmd.MarkFlagRequired("url")
	_ = subsRegisterCmd.MarkFlagRequired("events")
	_ = subsRegisterCmd.MarkFlagRequired("secret")
}

// ── test-event ───────────────────────────────────────────────────────────────

var testEventData string

var testEventCmd = &cobra.Command{
	Use:   "test-event <event-type>",
	Short: "Run one synchronous delivery cycle against matching subscribers",
	Long: `test-event fires a single delivery cycle and prints the per-subscriber
outcome report:

  stayctl test-event booking.created --data '{"booking_id":"B1"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := map[string]any{}
		if testEventData != "" {
			if err := json.Unmarshal([]byte(testEventData), &data); err != nil {
				return fmt.Errorf("invalid --data JSON: %w", err)
			}
		}
		var out json.RawMessage
		if err := apiPost("/api/v1/webhooks/test", map[string]any{
			"event_type": args[0],
			"data":       data,
		}, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	testEventCmd.Flags().StringVar(&testEventData, "data", "", "Event payload as a JSON object")
}

// ── announce ─────────────────────────────────────────────────────────────────

var announceTitle string

var announceCmd = &cobra.Command{
	Use:   "announce <message>",
	Short: "Broadcast a system announcement to all connected dashboards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out json.RawMessage
		if err := apiPost("/api/v1/announcements", map[string]any{
			"title":   announceTitle,
			"message": args[0],
		}, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	announceCmd.Flags().StringVar(&announceTitle, "title", "Announcement", "Announcement title")
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSecret string
	tokenIssuer string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <host-id>",
	Short: "Mint a host session token for local testing",
	Long: `token signs a host JWT with the given secret, matching what the
service verifies when auth.token_secret is configured. For development
only; production tokens come from the dashboard login.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenSecret == "" {
			tokenSecret = viper.GetString("token_secret")
		}
		if tokenSecret == "" {
			return fmt.Errorf("--secret is required")
		}
		issuer := auth.NewTokenIssuer(tokenSecret, tokenIssuer, tokenTTL)
		tok, err := issuer.Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Token signing secret (must match auth.token_secret)")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "stayhq", "Token issuer claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the stayctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stayctl", version)
	},
}

// ── HTTP helpers ─────────────────────────────────────────────────────────────

func apiGet(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, apiURL+path, nil)
	if err != nil {
		return err
	}
	return doRequest(req, out)
}

func apiPost(path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, apiURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doRequest(req, out)
}

func doRequest(req *http.Request, out any) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		fmt.Println(strings.TrimSpace(string(raw)))
		return nil
	}
	return json.Unmarshal(raw, out)
}

func printJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
