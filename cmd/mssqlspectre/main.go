package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/mssqlspectre/internal/app"
	"github.com/ppiankov/mssqlspectre/internal/collector"
	"github.com/ppiankov/mssqlspectre/internal/logging"
	"github.com/ppiankov/mssqlspectre/internal/models"
)

var (
	version    = "1.0.0"
	verbose    bool
	isFirstRun bool
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitAuth       = 4
	ExitNetwork    = 5
	ExitFindings   = 6
)

// FindingsError indicates the analysis completed but findings were detected.
type FindingsError struct {
	Count int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d findings detected", e.Count)
}

func main() {
	logging.Init(false)
	isFirstRun = app.IsFirstRun()

	root := &cobra.Command{
		Use:   "mssqlspectre",
		Short: "SQL Server query advisor",
		Long: `MssqlSpectre analyzes SQL Server queries for anti-patterns, missing
indexes and redundant indexes, and can benchmark a query against an
automatic rewrite.

It produces text, JSON or SARIF reports suitable for local review or
CI pipelines.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewAnalyzeCmd())
	root.AddCommand(NewVersionCmd())

	if err := root.Execute(); err != nil {
		exitCode := classifyError(err)
		var fe *FindingsError
		if errors.As(err, &fe) {
			logrus.WithField("count", fe.Count).Info("findings detected")
		} else {
			logrus.WithError(err).Error("command failed")
		}
		os.Exit(exitCode)
	}
}

func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var fe *FindingsError
	if errors.As(err, &fe) {
		return ExitFindings
	}

	if models.IsInvalidInput(err) {
		return ExitInvalidArg
	}

	if collector.IsAuthError(err) {
		return ExitAuth
	}

	if collector.IsTransientError(err) {
		return ExitNetwork
	}

	if os.IsNotExist(err) {
		return ExitNotFound
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such file") {
		return ExitNotFound
	}

	if strings.Contains(msg, "dial") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "network is unreachable") {
		return ExitNetwork
	}

	if strings.Contains(msg, "required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "must be") ||
		strings.Contains(msg, "expected") {
		return ExitInvalidArg
	}

	return ExitInternal
}
