package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/bedrock-agent-chat/internal/config"
	"github.com/tjfontaine/bedrock-agent-chat/internal/console"
	"github.com/tjfontaine/bedrock-agent-chat/internal/upload"
	"github.com/tjfontaine/bedrock-agent-chat/pkg/agentchat"
)

var (
	chatWidth int
	chatStyle string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent in the terminal",
	Long: `Starts an interactive chat session. Type a prompt and press enter.
Commands: /attach <path>, /detach, /trace, /citations, /reset, /help, /quit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().IntVar(&chatWidth, "width", 80, "word-wrap width for answers")
	chatCmd.Flags().StringVar(&chatStyle, "style", "", "glamour style (dark, light, notty); detected when empty")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Logs go to stderr as text so they do not interleave with answers.
	cfg.Log.Format = "text"
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	app, err := agentchat.New(agentchat.WithConfig(cfg), agentchat.WithLogger(logger))
	if err != nil {
		return err
	}

	// An interrupt cancels the running turn and ends the chat after the
	// current line; a second one exits immediately.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	sess, err := app.Sessions().Create(ctx)
	if err != nil {
		return err
	}

	renderer, err := console.NewRenderer(os.Stdout, console.RendererOptions{Width: chatWidth, Style: chatStyle})
	if err != nil {
		return err
	}
	renderer.Title(cfg.UI.Title, cfg.UI.Icon)

	chat := console.NewChat(sess, renderer, upload.NewExtractor(cfg.Server.UploadLimit), logger)
	return chat.Run(ctx, os.Stdin, os.Stdout)
}
