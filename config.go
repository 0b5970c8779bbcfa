// Package promptpilot wires the generation, evaluation and optimization
// capabilities into a prompt collection with analytics, export and a saved
// prompt library. This file re-exports the configuration API from package
// config so most callers only need to import promptpilot.
package promptpilot

import (
	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/utils"
)

type (
	// Config holds every setting: provider, models, request pacing, logging,
	// service address, library backend and tracing.
	//
	// Example usage:
	//   cfg := NewConfig()
	//   ApplyOptions(cfg, SetProvider("openai"), SetModel("gpt-4o-mini"))
	Config = config.Config

	// ConfigOption modifies a Config in place.
	ConfigOption = config.ConfigOption

	// LogLevel defines the verbosity of logging output.
	LogLevel = utils.LogLevel
)

var (
	// LoadConfig reads .env (when present) and the environment, and picks up
	// every *_API_KEY variable.
	LoadConfig = config.LoadConfig

	ApplyOptions = config.ApplyOptions
	NewConfig    = config.NewConfig
)

var (
	// Provider and models
	SetProvider       = config.SetProvider       // Sets the provider (google, openai, anthropic, groq, deepseek, genai, echo)
	SetModel          = config.SetModel          // Sets the default model for new variations
	SetEvaluatorModel = config.SetEvaluatorModel // Sets the fixed model used for quality evaluation
	SetModels         = config.SetModels         // Sets the selectable model list
	SetEndpoint       = config.SetEndpoint       // Overrides the provider base URL
	SetAPIKey         = config.SetAPIKey         // Sets the API key for the current provider

	// Generation parameters
	SetTemperature = config.SetTemperature // Controls randomness in generation (0.0-2.0)
	SetMaxTokens   = config.SetMaxTokens   // Sets maximum tokens to generate

	// Runtime configuration
	SetTimeout      = config.SetTimeout      // Sets request timeout duration
	SetMaxRetries   = config.SetMaxRetries   // Sets maximum retry attempts for non rate-limit failures
	SetRetryDelay   = config.SetRetryDelay   // Sets the initial delay between retries
	SetRateLimit    = config.SetRateLimit    // Paces outgoing requests
	SetConcurrency  = config.SetConcurrency  // Bounds parallel runs in RunAll
	SetLogLevel     = config.SetLogLevel     // Sets logging verbosity
	SetLogFormat    = config.SetLogFormat    // Chooses text or json logs
	SetExtraHeaders = config.SetExtraHeaders // Sets additional HTTP headers

	// Service
	SetAddr    = config.SetAddr    // Sets the HTTP listen address
	SetLibrary = config.SetLibrary // Selects the library backend (memory, sqlite:<path>, yaml:<path>)
)

const (
	LogLevelOff   = utils.LogLevelOff   // Disables all logging
	LogLevelError = utils.LogLevelError // Logs only errors
	LogLevelWarn  = utils.LogLevelWarn  // Logs warnings and errors
	LogLevelInfo  = utils.LogLevelInfo  // Logs info, warnings, and errors
	LogLevelDebug = utils.LogLevelDebug // Logs all messages including debug
)
