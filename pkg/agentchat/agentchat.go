// Package agentchat provides the public API for embedding the Bedrock agent
// chat service.
package agentchat

import (
	"github.com/tjfontaine/bedrock-agent-chat/internal/runtime"
)

// App is the assembled chat service.
// See internal/runtime.App for full documentation.
type App = runtime.App

// Option is a functional option for configuring an App.
type Option = runtime.Option

// New creates a new App with the given options.
// Example:
//
//	app, err := agentchat.New(
//	    agentchat.WithFileConfig("config.yaml"),
//	    agentchat.WithLogger(logger),
//	)
var New = runtime.New

// Configuration options
var (
	WithFileConfig     = runtime.WithFileConfig
	WithConfig         = runtime.WithConfig
	WithTransport      = runtime.WithTransport
	WithLogger         = runtime.WithLogger
	WithTracerProvider = runtime.WithTracerProvider
)
