package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/bedrock-agent-chat/internal/auth"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen [api-key]",
	Short: "Hash an API key for server.api_key_hashes",
	Long: `Prints the SHA-256 hash of the given API key, or of a freshly generated
one, in the form expected by server.api_key_hashes in config.yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var apiKey string
		if len(args) == 1 {
			apiKey = args[0]
		} else {
			var err error
			if apiKey, err = auth.GenerateAPIKey(); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "API Key: %s\n", apiKey)
		fmt.Fprintf(out, "SHA-256 Hash: %s\n", auth.HashAPIKey(apiKey))
		fmt.Fprintln(out, "\nAdd this to your config.yaml:")
		fmt.Fprintln(out, "server:")
		fmt.Fprintln(out, "  api_key_hashes:")
		fmt.Fprintf(out, "    - \"%s\"\n", auth.HashAPIKey(apiKey))
		return nil
	},
}
