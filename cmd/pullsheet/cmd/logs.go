package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var logsExportOut string

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Export or archive the audit log",
}

var logsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the audit log as CSV",
	Long: `Write the newest audit log entries as CSV to stdout or to --out.

The header is created_at,user_email,action,payload and every field is quoted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		var w io.Writer = cmd.OutOrStdout()
		if logsExportOut != "" {
			f, ferr := os.Create(logsExportOut)
			if ferr != nil {
				return fmt.Errorf("failed to create %s: %w", logsExportOut, ferr)
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("failed to close %s: %w", logsExportOut, cerr)
				}
			}()
			w = f
		}

		n, err := a.audit.Export(ctx, w)
		if err != nil {
			return err
		}
		logger.Info("audit log exported", "rows", n, "out", logsExportOut)
		return nil
	},
}

var logsArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Upload a CSV export of the audit log to S3",
	Long:  `Upload a CSV export to EXPORT_S3_BUCKET and print its location.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		loc, n, err := a.admin.ArchiveLogs(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows)\n", loc, n)
		return nil
	},
}

func init() {
	logsExportCmd.Flags().StringVarP(&logsExportOut, "out", "o", "", "file to write instead of stdout")
	logsCmd.AddCommand(logsExportCmd, logsArchiveCmd)
	rootCmd.AddCommand(logsCmd)
}
