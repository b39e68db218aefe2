// Command stepchain runs the agent pipeline orchestration service.
//
// Usage:
//
//	stepchain serve --config config.yaml
//	stepchain run --pipeline bizdev --input '{"requirement":"...","user_id":"u1"}'
//	stepchain validate --config config.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/stepchain/stepchain/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the trigger API server."`
	Run      RunCmd      `cmd:"" help:"Execute one pipeline run and print the result."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFormat string `help:"Log format (text, json)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
}

func main() {
	// Environment files feed ${VAR} expansion in the config
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("stepchain"),
		kong.Description("Agent pipeline orchestration service."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run(cli))
}

// loadConfig loads the configuration file, or defaults when none is given
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		return cfg, nil
	}
	return config.LoadConfig(path)
}
