package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/folio/internal/analytics"
	"github.com/kalambet/folio/internal/api"
	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/pipeline"
	"github.com/kalambet/folio/internal/storage"
	"github.com/kalambet/folio/internal/tenant"
)

// --- resolve ---

var resolveCmd = &cobra.Command{
	Use:   "resolve <host>...",
	Short: "Show which tenant each hostname resolves to",
	Long: `Show which tenant each hostname resolves to.

Examples:
  folio resolve alice.cofounds.in
  folio resolve www.cofounds.in bob.localhost:5173`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rules, err := loadRules(cfg)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return resolveHosts(cmd.OutOrStdout(), rules, args, asJSON)
	},
}

func init() {
	resolveCmd.Flags().Bool("json", false, "print one JSON identity per line")
}

func resolveHosts(w io.Writer, rules tenant.Rules, hosts []string, asJSON bool) error {
	enc := json.NewEncoder(w)
	for _, h := range hosts {
		id := rules.Resolve(h)
		if asJSON {
			if err := enc.Encode(struct {
				Host string `json:"host"`
				tenant.Identity
			}{h, id}); err != nil {
				return err
			}
			continue
		}
		if id.Valid {
			fmt.Fprintf(w, "%s -> %s\n", h, colorize(colorGreen, id.Username))
		} else {
			fmt.Fprintf(w, "%s -> %s\n", h, colorize(colorYellow, "(unresolved)"))
		}
	}
	return nil
}

// --- fetch ---

var fetchCmd = &cobra.Command{
	Use:   "fetch <username>",
	Short: "Fetch a tenant's portfolio and print the normalized JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// One-shot: no revalidation cache, no analytics.
		client := newBackendClient(cfg, nil)
		loader := pipeline.NewLoader(client, analytics.Nop{})
		return fetchPortfolio(cmd.Context(), cmd.OutOrStdout(), loader, args[0])
	},
}

func fetchPortfolio(ctx context.Context, w io.Writer, loader api.PortfolioLoader, username string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res := loader.Load(ctx, tenant.Identity{Username: username, Valid: username != ""})
	switch res.Status {
	case pipeline.StatusOK:
	case pipeline.StatusUnresolved:
		return errors.New("username is required")
	default:
		return fmt.Errorf("fetching %s: %s", username, res.Message)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Profile)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show folio configuration and server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	serverUp := false
	if resp, err := client.get(ctx, "/health"); err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			serverUp = true
			printStatus("Server", "running at %s", client.baseURL)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.API.BaseURL == "" {
		printStatus("Backend", "%s", colorize(colorYellow, "not configured"))
	} else {
		printStatus("Backend", "%s", cfg.API.BaseURL)
	}
	printStatus("Environment", "%s", cfg.App.Env)
	if cfg.Cache.RedisAddr != "" {
		printStatus("Cache", "redis %s (ttl %s)", cfg.Cache.RedisAddr, cfg.Cache.TTL)
	} else {
		printStatus("Cache", "memory (ttl %s)", cfg.Cache.TTL)
	}
	if cfg.AnalyticsActive() {
		printStatus("Analytics", "posthog %s", cfg.Analytics.PostHogHost)
	} else {
		printStatus("Analytics", "disabled")
	}

	if serverUp && client.token != "" {
		resp, err := client.get(ctx, "/admin/queue")
		if err == nil {
			var stats storage.QueueStats
			if decodeJSON(resp, &stats) == nil {
				printStatus("Event queue", "%d pending, %d running, %d failed, %d delivered",
					stats.Pending, stats.Running, stats.Failed, stats.Completed)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rules, err := loadRules(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		// stdout carries the protocol; keep logs on stderr.
		setupLogging(cfg.Log.Level)

		client := newBackendClient(cfg, nil)
		s := api.NewMCPServer(api.MCPDeps{
			Rules:  rules,
			Loader: pipeline.NewLoader(client, analytics.Nop{}),
		}, version)

		err = server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the revalidation cache of a running server",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <username>",
	Short: "Drop a tenant's cached portfolio so the next request refetches it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if client.token == "" {
			return errors.New("admin token not set; export FOLIO_ADMIN_TOKEN")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := client.post(ctx, "/admin/cache/"+url.PathEscape(args[0])+"/invalidate")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Invalidated cached portfolio for %s", args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s in %s", key, value, config.ConfigFilePath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
