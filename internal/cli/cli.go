package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/markpact/internal/app"
	"github.com/vk/markpact/internal/generator"
)

// Version is the reported program version.
var Version = "dev"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("markpact", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Markpact - execute the instruction blocks of a Markdown document.

Usage:
  markpact [options] [README.md]

Arguments:
  README.md
    Path to the document. Defaults to README.md.

Options:
`)
		flagSet.PrintDefaults()
	}

	var cfg app.Config
	stringVar := func(p *string, names []string, value, usage string) {
		for _, n := range names {
			flagSet.StringVar(p, n, value, usage)
		}
	}
	boolVar := func(p *bool, names []string, usage string) {
		for _, n := range names {
			flagSet.BoolVar(p, n, false, usage)
		}
	}

	stringVar(&cfg.SandboxDir, []string{"sandbox", "s"}, "", "Sandbox directory (default ./sandbox).")
	stringVar(&cfg.SettingsPath, []string{"config"}, "", "Settings file (default markpact.hcl next to the document).")
	stringVar(&cfg.DotenvPath, []string{"env-file"}, ".env", "Dotenv file read below the process environment.")
	boolVar(&cfg.DryRun, []string{"dry-run", "n"}, "Print the plan without writing or executing anything.")
	boolVar(&cfg.Clean, []string{"clean"}, "Remove the sandbox before starting.")
	boolVar(&cfg.NoVenv, []string{"no-venv"}, "Do not create a virtual environment.")
	boolVar(&cfg.Quiet, []string{"quiet", "q"}, "Only log errors.")

	boolVar(&cfg.NoAutoFix, []string{"no-auto-fix"}, "Run the command once without fixing failures.")
	maxRetriesFlag := flagSet.Int("max-retries", 3, "Retry budget of the auto-fix loop; 0 disables retries.")
	boolVar(&cfg.LLMFix, []string{"llm-fix"}, "Ask the generator to repair the document after an unfixable failure.")

	boolVar(&cfg.Test, []string{"test", "t"}, "Run the document's test blocks.")
	flagSet.IntVar(&cfg.Port, "port", 0, "Service port for tests and auto-fix (default 8000).")
	stringVar(&cfg.ReportPath, []string{"report"}, "", "Write the test results as YAML to this file.")

	boolVar(&cfg.Publish, []string{"publish"}, "Publish the sandbox to its registry.")
	stringVar(&cfg.Bump, []string{"bump"}, "", "Bump the version before publishing: major, minor or patch.")
	stringVar(&cfg.Registry, []string{"registry"}, "", "Override the publish registry.")

	boolVar(&cfg.Convert, []string{"convert", "c"}, "Convert plain Markdown code blocks to markpact blocks.")
	boolVar(&cfg.ConvertOnly, []string{"convert-only"}, "Print the converted document and exit.")
	stringVar(&cfg.SaveConverted, []string{"save-converted"}, "", "Save the converted document to this file.")
	boolVar(&cfg.Auto, []string{"auto", "a"}, "Convert only when the document has no markpact blocks.")

	stringVar(&cfg.Prompt, []string{"prompt", "p"}, "", "Generate a document from this description.")
	var example string
	stringVar(&example, []string{"example", "e"}, "", "Generate a document from a built-in example prompt (see --list-examples).")
	listExamples := flagSet.Bool("list-examples", false, "List the built-in example prompts and exit.")
	stringVar(&cfg.Output, []string{"output", "o"}, "", "Where to save the generated document.")
	boolVar(&cfg.RunAfterGenerate, []string{"run", "r"}, "Execute the generated document.")
	stringVar(&cfg.Model, []string{"model", "m"}, "", "Generator model name.")

	boolVar(&cfg.Watch, []string{"watch", "w"}, "Re-materialize the sandbox whenever the document changes.")
	boolVar(&cfg.Docker, []string{"docker"}, "Build the sandbox into a Docker image and run it in a container.")

	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	stringVar(&cfg.LogFile, []string{"log-file"}, "", "Also write JSON logs to this file.")
	versionFlag := flagSet.Bool("version", false, "Print the version and exit.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if *versionFlag {
		fmt.Fprintf(output, "markpact %s\n", Version)
		return nil, true, nil
	}
	if *listExamples {
		generator.PrintExamples(output)
		return nil, true, nil
	}
	if example != "" && cfg.Prompt == "" {
		cfg.Prompt = generator.ExamplePrompt(example)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected one document, got %d", flagSet.NArg())}
	}
	cfg.DocumentPath = flagSet.Arg(0)
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "max-retries" {
			cfg.MaxRetries = maxRetriesFlag
		}
	})

	cfg.LogFormat = strings.ToLower(*logFormatFlag)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	cfg.LogLevel = strings.ToLower(*logLevelFlag)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "document", config.DocumentPath)
	return config, false, nil
}
