package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/vk/configurator/internal/app"
	"github.com/vk/configurator/internal/configurator"
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

// defaults are the flag defaults, overridable from the environment.
type defaults struct {
	ConfigPath      string `env:"CONFIGURATOR_CONFIG"`
	WorkingDir      string `env:"CONFIGURATOR_WORKING_DIR"`
	MaxRecursion    int    `env:"CONFIGURATOR_MAX_RECURSION" envDefault:"15"`
	LogFormat       string `env:"CONFIGURATOR_LOG_FORMAT" envDefault:"text"`
	LogLevel        string `env:"CONFIGURATOR_LOG_LEVEL" envDefault:"info"`
	HealthcheckPort int    `env:"CONFIGURATOR_HEALTHCHECK_PORT" envDefault:"0"`
	Watch           bool   `env:"CONFIGURATOR_WATCH" envDefault:"false"`
	Commands        bool   `env:"CONFIGURATOR_COMMANDS" envDefault:"false"`
}

// Parse processes command-line arguments against the process environment. It
// returns a populated Config, a boolean indicating if the program should exit
// cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	return parse(args, env.ToMap(os.Environ()), output)
}

func parse(args []string, environ map[string]string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var d defaults
	if err := env.ParseWithOptions(&d, env.Options{Environment: environ}); err != nil {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("parse env: %v", err)}
	}
	if d.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, false, &ExitError{Code: 1, Message: fmt.Sprintf("resolve working directory: %v", err)}
		}
		d.WorkingDir = wd
	}

	flagSet := flag.NewFlagSet("configurator", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Configurator - applies a declarative server configuration and runs its actions.

Usage:
  configurator [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    Path to an .xml or .hcl configuration document.
    Defaults to config.xml in the working directory.

Commands (with -commands, one per line on stdin):
  execAction <id>
  execConfiguration

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", d.ConfigPath, "Path to the configuration document.")
	cFlag := flagSet.String("c", "", "Path to the configuration document (shorthand).")
	workingDirFlag := flagSet.String("working-dir", d.WorkingDir, "Base directory for core libraries and the default config.")
	maxRecursionFlag := flagSet.Int("max-recursion", d.MaxRecursion, "Maximum nesting depth of action invocations.")
	healthPortFlag := flagSet.Int("healthcheck-port", d.HealthcheckPort, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", d.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", d.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	watchFlag := flagSet.Bool("watch", d.Watch, "Reload the configuration document when the file changes.")
	commandsFlag := flagSet.Bool("commands", d.Commands, "Read commands from stdin until EOF.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := *configFlag
	if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: "expected at most one CONFIG_PATH argument"}
	}
	slog.Debug("Config path determined.", "path", path)

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

	maxRecursion := *maxRecursionFlag
	if maxRecursion == 0 {
		maxRecursion = configurator.DefaultMaxRecursion
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPath:      path,
		WorkingDir:      *workingDirFlag,
		MaxRecursion:    maxRecursion,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Watch:           *watchFlag,
		Commands:        *commandsFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
