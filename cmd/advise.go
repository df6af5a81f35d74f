package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/talkmate-aac/talkmate/internal/advisory"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
)

var adviceKinds = map[string]advisory.Kind{
	"behavior": advisory.Behavior,
	"insight":  advisory.Insight,
}

func newAdviseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advise {behavior|insight} <description>",
		Short: "Ask for a behavior analysis or an interpretation of a child's actions",
		Example: `  # Analyze a described video
  talkmate advise behavior "He lines up his cars and cries when one is moved"

  # Interpret what a child may be trying to say
  talkmate advise insight "She keeps pulling me to the fridge"`,
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"behavior", "insight"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := adviceKinds[args[0]]
			if !ok {
				return fmt.Errorf("unknown advice kind %q (want behavior or insight)", args[0])
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			var metrics *telemetry.Metrics
			stack, err := newGenerationStack(cfg, metrics, logger)
			if err != nil {
				return err
			}
			panel := stack.panelFactory()(kind)

			result, err := panel.Submit(cmd.Context(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if !result.OK() {
				return errors.New(result.Error.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Value)
			return nil
		},
	}
	return cmd
}
