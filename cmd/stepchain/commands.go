package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/stepchain/stepchain"
	"github.com/stepchain/stepchain/pipeline"
)

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(stepchain.GetVersion().String())
	return nil
}

// RunCmd executes one pipeline run synchronously and prints the result.
type RunCmd struct {
	Pipeline  string `short:"p" required:"" help:"Pipeline to run."`
	Input     string `short:"i" help:"Trigger input as a JSON object."`
	InputFile string `name:"input-file" help:"Read trigger input from a JSON file." type:"path"`
}

func (c *RunCmd) Run(cli *CLI) error {
	input, err := c.readInput()
	if err != nil {
		return err
	}

	app, err := buildApp(cli)
	if err != nil {
		return err
	}
	defer app.Close()

	def, ok := app.pipelines.Get(c.Pipeline)
	if !ok {
		return fmt.Errorf("unknown pipeline %q (available: %v)", c.Pipeline, app.pipelines.Names())
	}

	policyCfg, ok := app.cfg.GetPipeline(c.Pipeline)
	if !ok {
		policyCfg = nil
	}

	result, err := app.engine.Execute(context.Background(), def, policyCfg, input)
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"run_id":   result.RunID,
		"pipeline": result.Pipeline,
		"status":   result.Status,
	}
	if result.Error != nil {
		out["failing_step"] = result.Error.FailingStep
		out["error_detail"] = result.Error.Detail
	} else {
		out["output"] = result.Output
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return err
	}

	if result.Status == pipeline.StatusFailed {
		return fmt.Errorf("run %s failed at step %s", result.RunID, result.Error.FailingStep)
	}
	return nil
}

func (c *RunCmd) readInput() (map[string]interface{}, error) {
	raw := []byte(c.Input)
	if c.InputFile != "" {
		data, err := os.ReadFile(c.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		raw = data
	}
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}

	var input map[string]interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	return input, nil
}

// ValidateCmd validates a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	if _, err := loadConfig(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s: configuration valid\n", cli.Config)
	return nil
}
