package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tendergate/tendergate/internal/output"
	"github.com/tendergate/tendergate/internal/store"
)

var (
	violationsResetAll        bool
	violationsResetIdentifier string
	violationsResetPrefix     string
	violationsResetYes        bool
	violationsResetDryRun     bool
	violationsResetOutput     string
	violationsResetOut        string
	violationsResetOutDir     string
)

var violationsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete recorded rate limit violations",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(violationsResetOutput)
		if err != nil {
			return err
		}

		query := store.ViolationQuery{
			All:        violationsResetAll,
			Identifier: strings.TrimSpace(violationsResetIdentifier),
			Prefix:     strings.TrimSpace(violationsResetPrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !violationsResetYes && !violationsResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountViolations(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(violationsResetOut)
		outDir := strings.TrimSpace(violationsResetOutDir)
		if outPath != "" && outDir != "" {
			return fmt.Errorf("--out and --out-dir are mutually exclusive")
		}
		ext := outputExtension(format)
		if outDir != "" {
			var err error
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("violations.reset.%s", ext))
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if violationsResetDryRun {
			return writeViolationsResetResult(format, sink.writer, matched, 0, true)
		}

		deleted, err := db.ResetViolations(cmd.Context(), query)
		if err != nil {
			return err
		}

		return writeViolationsResetResult(format, sink.writer, matched, deleted, false)
	},
}

func writeViolationsResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d violation record(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d violation record(s)\n", deleted, matched)
	return err
}

func init() {
	violationsResetCmd.Flags().BoolVar(&violationsResetAll, "all", false, "Reset all identities")
	violationsResetCmd.Flags().StringVar(&violationsResetIdentifier, "identifier", "", "Reset a single identity (exact match)")
	violationsResetCmd.Flags().StringVar(&violationsResetPrefix, "prefix", "", "Reset identities with matching prefix")
	violationsResetCmd.Flags().BoolVar(&violationsResetYes, "yes", false, "Confirm destructive reset")
	violationsResetCmd.Flags().BoolVar(&violationsResetDryRun, "dry-run", false, "Show what would be deleted")
	violationsResetCmd.Flags().StringVar(&violationsResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	violationsResetCmd.Flags().StringVar(&violationsResetOut, "out", "", "Write output to a file (default stdout)")
	violationsResetCmd.Flags().StringVar(&violationsResetOutDir, "out-dir", "", "Write output to a directory")
}
