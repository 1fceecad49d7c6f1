package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/intentflow/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("intentflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
intentflow - A rule-driven action planning and execution engine.

Usage:
  intentflow [options] [INTENT_PATH]

Arguments:
  INTENT_PATH
    Path to a classified intent JSON file.

Options:
`)
		flagSet.PrintDefaults()
	}

	intentFlag := flagSet.String("intent", "", "Path to the intent JSON file.")
	iFlag := flagSet.String("i", "", "Path to the intent JSON file (shorthand).")
	rulesFlag := flagSet.String("rules", "rules", "Path to a .hcl rulebook file or a directory of rulebooks.")
	modulesPathFlag := flagSet.String("modules-path", "modules", "Path to the directory containing capability manifests.")
	deadlineFlag := flagSet.Duration("deadline", 60*time.Second, "Wall-clock deadline for the whole plan.")
	maxConcurrentFlag := flagSet.Int("max-concurrent", 8, "Maximum number of actions running at once.")
	safetyFactorFlag := flagSet.Float64("safety-factor", 1.5, "Multiplier applied to an action's time estimate to form its timeout.")
	autoConfirmFlag := flagSet.Bool("auto-confirm", false, "Answer every confirmation request with yes.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *intentFlag != "" {
		path = *intentFlag
	} else if *iFlag != "" {
		path = *iFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Intent path determined.", "path", path)

	if path == "" {
		slog.Debug("No intent path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *safetyFactorFlag < 1.0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid safety-factor: must be >= 1.0"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		IntentPath:      path,
		RulesPath:       *rulesFlag,
		ModulesPath:     *modulesPathFlag,
		Deadline:        *deadlineFlag,
		MaxConcurrent:   *maxConcurrentFlag,
		SafetyFactor:    *safetyFactorFlag,
		AutoConfirm:     *autoConfirmFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
