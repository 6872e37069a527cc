package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/datastore"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/registry"
	"github.com/aleister1102/oerscout/internal/retrieval"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "oerscout",
		Short:        "Discover open educational resources and map their tables of contents",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&globalFlags.configPath, "config", "c", "", "Path to the YAML/JSON configuration file (default: search standard locations)")
	root.PersistentFlags().StringVar(&globalFlags.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newScanCmd(),
		newActivateCmd(),
		newDeactivateCmd(),
		newDiscoverCmd(),
		newRetrieveCmd(),
		newLogsCmd(),
	)
	return root
}

func newScanCmd() *cobra.Command {
	var (
		seeds        []string
		resume       bool
		autoActivate bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan configured seed sources and map the TOC of every asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(uuid.New().String())
			if err != nil {
				return err
			}
			defer app.Close()

			selected := app.Config.Seeds
			if len(seeds) > 0 {
				selected = selected[:0:0]
				for _, name := range seeds {
					seed, ok := app.Config.FindSeed(name)
					if !ok {
						return fmt.Errorf("unknown seed %q", name)
					}
					selected = append(selected, seed)
				}
			}

			var resumeOpt, activateOpt *bool
			if cmd.Flags().Changed("resume") {
				resumeOpt = &resume
			}
			if cmd.Flags().Changed("auto-activate") {
				activateOpt = &autoActivate
			}

			results := app.Registry.ScanAll(cmd.Context(), selected, app.scanOptions(resumeOpt, activateOpt))
			printScanResults(cmd.OutOrStdout(), results)
			return scanErrors(results)
		},
	}
	cmd.Flags().StringSliceVarP(&seeds, "seed", "s", nil, "Seed name to scan (repeatable; default: all configured seeds)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Skip assets already scanned with a successful TOC extraction")
	cmd.Flags().BoolVar(&autoActivate, "auto-activate", false, "Activate every asset that becomes eligible")
	return cmd
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <asset-id>",
		Short: "Activate an asset whose TOC was extracted and whose robots policy allows it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp("")
			if err != nil {
				return err
			}
			defer app.Close()

			asset, err := app.Registry.ActivateAsset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s (%s)\n", asset.Title, asset.ID)
			return nil
		},
	}
}

func newDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <asset-id>",
		Short: "Deactivate an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp("")
			if err != nil {
				return err
			}
			defer app.Close()

			asset, err := app.Registry.DeactivateAsset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s (%s)\n", asset.Title, asset.ID)
			return nil
		},
	}
}

func newDiscoverCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "discover <topic>",
		Short: "Find or create the best matching asset for a free-text topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp("")
			if err != nil {
				return err
			}
			defer app.Close()

			match, err := app.Discovery.FindOrCreate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), match)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n  id:     %s\n  url:    %s\n  origin: %s (score %.1f", match.Asset.Title, match.Asset.ID, match.Asset.URL, match.Origin, match.Score)
			if !match.Confident {
				fmt.Fprint(out, ", best effort")
			}
			fmt.Fprintln(out, ")")
			printToc(out, match.Nodes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the match as JSON")
	return cmd
}

func newRetrieveCmd() *cobra.Command {
	var (
		limit   int
		section string
	)
	cmd := &cobra.Command{
		Use:   "retrieve <asset-id>",
		Short: "Fetch and clean the pages behind an asset's TOC nodes and print them with citations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp("")
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			asset, err := app.Store.GetAsset(ctx, args[0])
			if err != nil {
				return err
			}
			outline, err := app.Store.ListTocNodes(ctx, asset.ID)
			if err != nil {
				return err
			}
			selected := selectNodes(outline, section, limit)

			contents := app.Retrieval.RetrieveSelected(ctx, outline, selected, asset)
			citations := retrieval.BuildCitations(contents)
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"asset":     asset.ID,
				"contents":  contents,
				"citations": citations,
				"display":   retrieval.FormatCitationsDisplay(citations),
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of nodes to retrieve (0 for all)")
	cmd.Flags().StringVar(&section, "section", "", "Only retrieve nodes whose slug or title contains this text")
	return cmd
}

func newLogsCmd() *cobra.Command {
	var filter datastore.ScanLogFilter
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the scan audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp("")
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.Registry.ScanLogs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-17s %-8s %s\n", e.CreatedAt.Format(time.RFC3339), e.Action, e.Status, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.SourceID, "source", "", "Filter by source ID")
	cmd.Flags().StringVar(&filter.AssetID, "asset", "", "Filter by asset ID")
	cmd.Flags().StringVar(&filter.Action, "action", "", "Filter by action (e.g. scan_source, map_toc)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 50, "Show only the most recent entries")
	return cmd
}

// selectNodes keeps nodes with a URL whose slug or title contains section, then the
// first limit.
func selectNodes(nodes []*models.TocNode, section string, limit int) []*models.TocNode {
	withURL := nodes[:0:0]
	for _, n := range nodes {
		if n.URL != "" {
			withURL = append(withURL, n)
		}
	}
	nodes = withURL
	if section != "" {
		needle := strings.ToLower(section)
		filtered := nodes[:0:0]
		for _, n := range nodes {
			if strings.Contains(strings.ToLower(n.Slug), needle) || strings.Contains(strings.ToLower(n.Title), needle) {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes
}

func printScanResults(w io.Writer, results []*registry.ScanResult) {
	for _, r := range results {
		fmt.Fprintf(w, "%s: %d assets, %d nodes, %d skipped, %d activated, %d errors (%s)\n",
			r.SourceName, r.Assets, r.Nodes, r.Skipped, r.Activated, len(r.Errors), r.Duration.Round(time.Millisecond))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  error: %s\n", e)
		}
	}
}

// scanErrors folds every per-source error into one, or nil for a clean scan.
func scanErrors(results []*registry.ScanResult) error {
	var ec common.ErrorCollector
	for _, r := range results {
		for _, msg := range r.Errors {
			ec.AddWithContext(errors.New(msg), r.SourceName)
		}
	}
	return ec.Error()
}

func printToc(w io.Writer, nodes []*models.TocNode) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", n.Depth+1), n.Title)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
