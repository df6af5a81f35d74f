package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
)

func newVoicesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the narration languages offered by the speech platform",
		Long: `Lists one voice per language, in the order the speech platform reports
them. Use --all to list every voice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			var metrics *telemetry.Metrics
			narrator, stop, err := startNarration(cmd.Context(), cfg.Narration, metrics, logger)
			if err != nil {
				return err
			}
			defer stop()

			voices := narrator.ListLanguages()
			if all {
				voices = narrator.Voices()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LANG\tVOICE")
			for _, v := range voices {
				fmt.Fprintf(w, "%s\t%s\n", v.Lang, v.Name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List every voice instead of one per language")

	return cmd
}
