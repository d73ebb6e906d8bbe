package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/summary"
)

var (
	copyEmail   string
	copyStdout  bool
	copyVariant string
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy a user's pull summary to the clipboard",
	Long: `Render the pull and restock lists of one user as plain text and copy
them to the system clipboard.

Examples:
  pullsheet copy --email baker@example.com
  pullsheet copy --email baker@example.com --variant pull --stdout`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		variant, err := summary.ParseVariant(copyVariant)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.profiles.GetByEmail(ctx, copyEmail)
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", copyEmail, err)
		}
		if p == nil {
			return fmt.Errorf("no profile for %s: %w", copyEmail, domain.ErrNotFound)
		}
		if !p.Active {
			return fmt.Errorf("%s: %w", copyEmail, domain.ErrInactive)
		}

		text, err := a.pull.SummaryText(ctx, p.Actor(), variant)
		if err != nil {
			return err
		}

		if copyStdout {
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}
		if err := clipboard.WriteAll(text); err != nil {
			return fmt.Errorf("failed to write clipboard: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Copied summary for %s to the clipboard.\n", p.Actor().Name())
		return nil
	},
}

func init() {
	copyCmd.Flags().StringVarP(&copyEmail, "email", "e", "", "email of the user whose summary to copy")
	copyCmd.Flags().BoolVar(&copyStdout, "stdout", false, "print the summary instead of copying it")
	copyCmd.Flags().StringVar(&copyVariant, "variant", string(summary.VariantAll), "all, pull or restock")
	_ = copyCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(copyCmd)
}
