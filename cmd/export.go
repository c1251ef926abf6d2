package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export analyses to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Service.List(ctx, limit)
		if err != nil {
			return err
		}

		analyses := make([]*model.Analysis, 0, len(list))
		for _, sum := range list {
			if status != "" && string(sum.Status) != status {
				continue
			}
			a, err := env.Service.Get(ctx, sum.ID)
			if err != nil {
				return err
			}
			analyses = append(analyses, a)
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", out)
		}
		if err := report.Write(f, analyses); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "export: close %s", out)
		}

		fmt.Fprintf(os.Stderr, "Exported %d analyses to %s.\n", len(analyses), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "analyses.xlsx", "output xlsx path")
	exportCmd.Flags().Int("limit", 500, "max number of analyses to export")
	exportCmd.Flags().String("status", "", "only export analyses with this status (uploaded, processing, completed, failed)")
	rootCmd.AddCommand(exportCmd)
}
