package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/campusfound/campusfound/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	portalURL string
	authToken string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "found",
	Short: "CampusFound lost-and-found CLI",
	Long: `found is the command-line interface for the CampusFound portal.

It allows you to report lost and found items, browse candidate matches,
and claim a found item using the emailed verification code.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.found")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if portalURL == "" {
			portalURL = viper.GetString("portal_url")
		}
		if portalURL == "" {
			portalURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.found/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&portalURL, "portal", "", "CampusFound portal URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "campus identity-provider bearer token")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{}
	if authToken != "" {
		opts = append(opts, client.WithBearerToken(authToken))
	}
	return client.New(portalURL, opts...)
}

// ── report ───────────────────────────────────────────────────────────────────

var (
	reportType        string
	reportTitle       string
	reportDescription string
	reportLocation    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a lost or found item",
	Long: `report files a new posting with the portal.

New postings enter a moderation queue and appear in public listings only
after a campus operator approves them:

  found report --type lost --title "Black iPhone 13" --location "Main Library, 2nd floor"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := newClient().ReportItem(context.Background(), client.ReportItemRequest{
			Type:        reportType,
			Title:       reportTitle,
			Description: reportDescription,
			Location:    reportLocation,
		})
		if err != nil {
			return fmt.Errorf("report item: %w", err)
		}

		fmt.Printf("✓ Item reported\n\n")
		fmt.Printf("  ID:     %s\n", item.ID)
		fmt.Printf("  Type:   %s\n", item.Type)
		fmt.Printf("  Status: %s\n\n", item.Status)
		fmt.Println("Your posting will be visible once a moderator approves it.")
		fmt.Printf("Check matches later with: found matches %s\n", item.ID)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportType, "type", "", "Item type: lost or found")
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "Short item title")
	reportCmd.Flags().StringVar(&reportDescription, "description", "", "Longer description")
	reportCmd.Flags().StringVar(&reportLocation, "location", "", "Where the item was lost or found")

	_ = reportCmd.MarkFlagRequired("type")
	_ = reportCmd.MarkFlagRequired("title")
}

// ── list ─────────────────────────────────────────────────────────────────────

var (
	listType   string
	listFormat string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List approved postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := newClient().ListItems(context.Background(), listType)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		return printItems(items, listFormat)
	},
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "Filter by type: lost or found (default both)")
	listCmd.Flags().StringVar(&listFormat, "format", "text", "Output format: text or json")
}

func printItems(items []client.Item, format string) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(items) == 0 {
		fmt.Println("No items.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tTITLE\tLOCATION\tREPORTED")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.Type, it.Status, it.Title, it.Location,
			it.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// ── matches ──────────────────────────────────────────────────────────────────

var matchesFormat string

var matchesCmd = &cobra.Command{
	Use:   "matches <item-id>",
	Short: "Show candidate matches for a posting, best first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		matches, err := newClient().Matches(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetch matches: %w", err)
		}

		if matchesFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(matches)
		}
		if len(matches) == 0 {
			fmt.Println("No matches yet. Try again after more items are approved.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tID\tTITLE\tLOCATION")
		for _, m := range matches {
			fmt.Fprintf(w, "%.0f\t%s\t%s\t%s\n", m.Score, m.Item.ID, m.Item.Title, m.Item.Location)
		}
		return w.Flush()
	},
}

func init() {
	matchesCmd.Flags().StringVar(&matchesFormat, "format", "text", "Output format: text or json")
}

// ── claim ────────────────────────────────────────────────────────────────────

var claimCmd = &cobra.Command{
	Use:   "claim <item-id>",
	Short: "Claim a found item via emailed verification code",
	Long: `claim guides you through the complete claim flow.

The portal emails a 6-digit code to your campus address. Enter it when
prompted to finish the claim. The code is valid for 10 minutes; if it
expires, run 'found claim' again for a fresh one.`,
	Args: cobra.ExactArgs(1),
	RunE: runClaim,
}

func runClaim(cmd *cobra.Command, args []string) error {
	itemID := args[0]
	ctx := context.Background()
	c := newClient()
	stdin := bufio.NewReader(os.Stdin)

	item, err := c.GetItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}

	fmt.Printf("Claiming item:\n\n")
	fmt.Printf("  Title:    %s\n", item.Title)
	fmt.Printf("  Location: %s\n", item.Location)
	fmt.Printf("  Reported: %s\n\n", item.CreatedAt.Format("2006-01-02 15:04"))

	fmt.Print("Proceed? [Y/n]: ")
	answer, _ := stdin.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if answer != "" && strings.ToLower(answer) != "y" {
		fmt.Println("Aborted.")
		return nil
	}

	if err := c.Claim(ctx, itemID); err != nil {
		return fmt.Errorf("request claim code: %w", err)
	}
	fmt.Println("\n✓ Verification code sent to your campus email (valid 10 minutes)")

	// Mismatched codes leave the challenge intact, so let the user retry
	// until the code expires.
	for {
		fmt.Print("\nEnter 6-digit code: ")
		code, _ := stdin.ReadString('\n')
		code = strings.TrimSpace(code)

		err := c.VerifyClaim(ctx, itemID, code)
		switch {
		case err == nil:
			fmt.Printf("\n✓ Item claimed: %s\n", item.Title)
			fmt.Println("Visit the lost-and-found desk with your campus ID to pick it up.")
			return nil
		case errors.Is(err, client.ErrCodeMismatch):
			fmt.Println("Code does not match. Check your email and try again.")
		case errors.Is(err, client.ErrCodeExpired):
			return fmt.Errorf("code expired; run 'found claim %s' to request a new one", itemID)
		default:
			return fmt.Errorf("verify claim: %w", err)
		}
	}
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify <item-id> <code>",
	Short: "Submit a claim code without the guided flow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := newClient().VerifyClaim(context.Background(), args[0], args[1])
		switch {
		case err == nil:
			fmt.Println("✓ Item claimed")
			return nil
		case errors.Is(err, client.ErrCodeMismatch):
			return fmt.Errorf("code does not match")
		case errors.Is(err, client.ErrCodeExpired):
			return fmt.Errorf("code expired; run 'found claim %s' to request a new one", args[0])
		default:
			return fmt.Errorf("verify claim: %w", err)
		}
	},
}

// ── admin ────────────────────────────────────────────────────────────────────

var adminSecret string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Moderation commands for campus operators",
	Long: `admin manages the moderation queue.

Operator access requires either an identity token carrying the admin role
or the shared operator secret (--secret).`,
}

func adminClient() *client.Client {
	opts := []client.Option{}
	if authToken != "" {
		opts = append(opts, client.WithBearerToken(authToken))
	}
	if adminSecret != "" {
		opts = append(opts, client.WithAdminSecret(adminSecret))
	}
	return client.New(portalURL, opts...)
}

var adminQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List postings awaiting approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := adminClient().ModerationQueue(context.Background())
		if err != nil {
			return fmt.Errorf("fetch moderation queue: %w", err)
		}
		return printItems(items, "text")
	},
}

var adminApproveCmd = &cobra.Command{
	Use:   "approve <item-id>",
	Short: "Approve a pending posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := adminClient().ApproveItem(context.Background(), args[0]); err != nil {
			return fmt.Errorf("approve item: %w", err)
		}
		fmt.Println("✓ Item approved and visible in listings")
		return nil
	},
}

var adminRejectCmd = &cobra.Command{
	Use:   "reject <item-id>",
	Short: "Reject and remove a pending posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := adminClient().RejectItem(context.Background(), args[0]); err != nil {
			return fmt.Errorf("reject item: %w", err)
		}
		fmt.Println("✓ Item rejected")
		return nil
	},
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminSecret, "secret", "", "Shared operator secret")
	adminCmd.AddCommand(adminQueueCmd)
	adminCmd.AddCommand(adminApproveCmd)
	adminCmd.AddCommand(adminRejectCmd)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the found CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("found %s (CampusFound)\n", version)
	},
}
