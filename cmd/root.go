package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "talkmate.yaml"

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talkmate",
		Short: "Picture board that turns selected images into spoken sentences",
		Long: `TalkMate is an augmentative and alternative communication board.

A child picks pictures in order, a vision-capable LLM composes them into one
sentence, and the sentence is read aloud. Two advisory panels help caregivers
analyze a child's behavior and interpret what they may be trying to say.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", defaultConfigPath, "Path to YAML configuration file")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newComposeCmd())
	cmd.AddCommand(newAdviseCmd())
	cmd.AddCommand(newVoicesCmd())

	return cmd
}
