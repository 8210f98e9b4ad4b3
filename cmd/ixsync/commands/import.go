package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/peerix/ixsync/internal/logger"
	"github.com/peerix/ixsync/pkg/config"
	"github.com/peerix/ixsync/pkg/importer"
)

var (
	importAll        bool
	importASN        uint32
	importPreview    bool
	importCacheOnly  bool
	importSkipImport bool
	importJSON       bool
)

var importCmd = &cobra.Command{
	Use:   "import [ixlan-id]",
	Short: "Reconcile IXLANs against their IX-F feeds",
	Long: `Reconcile one IXLAN (or all of them) against the member-export feed
its exchange publishes.

By default the run commits: consenting networks get their records
updated, everyone else gets proposals, notifications go out and aged
proposals escalate to tickets. Use --preview to compute the same
decision stream without writing anything.

Examples:
  # Reconcile every IXLAN with a feed
  ixsync import --all

  # Reconcile a single IXLAN
  ixsync import 42

  # Dry-run a single IXLAN for one network
  ixsync import 42 --preview --asn 64500

  # Re-run against the locally cached feed
  ixsync import 42 --cache-only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importAll, "all", false, "Reconcile every active IXLAN that publishes a feed")
	importCmd.Flags().Uint32Var(&importASN, "asn", 0, "Restrict the run to a single network")
	importCmd.Flags().BoolVar(&importPreview, "preview", false, "Compute the decision stream without committing")
	importCmd.Flags().BoolVar(&importCacheOnly, "cache-only", false, "Use the locally cached feed instead of fetching")
	importCmd.Flags().BoolVar(&importSkipImport, "skip-import", false, "Fetch and validate the feed only, plus proposal cleanup")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "Print the run result as JSON")
}

func runImport(cmd *cobra.Command, args []string) error {
	if !importAll && len(args) == 0 {
		return fmt.Errorf("specify an ixlan id or use --all")
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Store.Close() }()

	ctx := context.Background()
	opts := importer.RunOptions{
		ASN:        importASN,
		Save:       !importPreview,
		CacheOnly:  importCacheOnly,
		SkipImport: importSkipImport,
	}

	if importAll {
		return deps.Importer.RunAll(ctx, opts)
	}

	ixlanID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid ixlan id: %s", args[0])
	}

	result, err := deps.Importer.Run(ctx, uint(ixlanID), opts)
	if err != nil {
		return err
	}

	if importJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	logger.Info("import run finished",
		"ixlan_id", ixlanID,
		"success", result.Success,
		"net_count", result.NetCount,
		"entries", len(result.Log.Data),
		"errors", len(result.Log.Errors))
	return nil
}
