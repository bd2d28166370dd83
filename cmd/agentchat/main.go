package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentchat",
	Short: "Chat with an Amazon Bedrock agent",
	Long: `agentchat talks to an Amazon Bedrock agent, rewrites its citation markers
into footnotes and lays out the agent's reasoning trace step by step.

The agent is selected with BEDROCK_AGENT_ID and BEDROCK_AGENT_ALIAS_ID
(default TSTALIASID). AWS credentials come from the default chain.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to an optional YAML config file")
	rootCmd.AddCommand(serveCmd, chatCmd, keygenCmd)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
