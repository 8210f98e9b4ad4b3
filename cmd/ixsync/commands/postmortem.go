package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/peerix/ixsync/pkg/config"
)

var postmortemLimit int

var postmortemCmd = &cobra.Command{
	Use:   "postmortem <asn>",
	Short: "Show the recent import history of a network",
	Long: `Reconstruct the recent import history of a network from the archive:
every add, modify and delete the importer applied to it, newest first,
with per-field before/after values.

Examples:
  ixsync postmortem 64500
  ixsync postmortem 64500 --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runPostmortem,
}

func init() {
	postmortemCmd.Flags().IntVar(&postmortemLimit, "limit", 0, "Maximum number of entries (default 100)")
}

func runPostmortem(cmd *cobra.Command, args []string) error {
	asn, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid asn: %s", args[0])
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

	records, err := deps.PostMortem.Generate(context.Background(), uint32(asn), postmortemLimit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
