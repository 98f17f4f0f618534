package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tendergate/tendergate/internal/output"
	"github.com/tendergate/tendergate/internal/store"
)

var (
	violationsListOutput     string
	violationsListOut        string
	violationsListOutDir     string
	violationsListAll        bool
	violationsListIdentifier string
	violationsListPrefix     string
)

var violationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded rate limit violations",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(violationsListOutput)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.ViolationQuery{
			All:        violationsListAll,
			Identifier: strings.TrimSpace(violationsListIdentifier),
			Prefix:     strings.TrimSpace(violationsListPrefix),
		}
		if !query.All && query.Identifier == "" && query.Prefix == "" {
			query.All = true
		}

		records, err := db.ListViolations(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(violationsListOut)
		outDir := strings.TrimSpace(violationsListOutDir)
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
			outPath = filepath.Join(outDir, fmt.Sprintf("violations.list.%s", ext))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		formatter := output.NewFormatter(format)
		rendered, err := formatter.FormatViolations(records)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	violationsListCmd.Flags().StringVar(&violationsListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	violationsListCmd.Flags().StringVar(&violationsListOut, "out", "", "Write output to a file (default stdout)")
	violationsListCmd.Flags().StringVar(&violationsListOutDir, "out-dir", "", "Write output to a directory")
	violationsListCmd.Flags().BoolVar(&violationsListAll, "all", false, "List all identities")
	violationsListCmd.Flags().StringVar(&violationsListIdentifier, "identifier", "", "List violations for one identity (exact match)")
	violationsListCmd.Flags().StringVar(&violationsListPrefix, "prefix", "", "List identities with matching prefix")
}
