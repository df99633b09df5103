package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/hop/errors"
	"github.com/spf13/cobra"
)

// Exit codes above 200 are warnings: the run was skipped, not broken.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitUsage          = 2
	ExitAlreadyRunning = 201
	ExitBusy           = 202
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeAlreadyRunning:
		return ExitAlreadyRunning
	case errors.ErrCodeBusy:
		return ExitBusy
	case errors.ErrCodeNotSpecified,
		errors.ErrCodeInvalidPort,
		errors.ErrCodeInvalidTunnelSpec,
		errors.ErrCodeConflictingOptions,
		errors.ErrCodeInvalidInput,
		errors.ErrCodeConfigInvalid:
		return ExitUsage
	}
	return ExitFailure
}

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	details := errors.Details(err)
	red := style(palette.Red).Bold(true)
	yellow := style(palette.Yellow).Bold(true)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s configuration not found at %v. Create hop.yml or pass --config.\n",
			red.Render("Error:"), details["path"])

	case errors.ErrCodeAlreadyRunning:
		fmt.Fprintf(h.Out, "%s %v is already running (PID %v), skipping.\n",
			yellow.Render("Warning:"), details["name"], details["pid"])

	case errors.ErrCodeBusy:
		fmt.Fprintf(h.Out, "%s %v is in use by PIDs %v. Try again later.\n",
			yellow.Render("Warning:"), details["path"], details["pids"])

	case errors.ErrCodeMissingCredentials:
		fmt.Fprintf(h.Out, "%s no %v configured for %v.\n", red.Render("Error:"), details["missing"], details["host"])
		fmt.Fprintln(h.Out, mutedStyle.Render("Set user and identity_file for the host in hop.yml, or pass --user and --identity."))

	case errors.ErrCodeIdentityFileNotFound:
		fmt.Fprintf(h.Out, "%s identity file %v does not exist.\n", red.Render("Error:"), details["path"])

	case errors.ErrCodeCommandNotFound:
		fmt.Fprintf(h.Out, "%s required command not found. Make sure OpenSSH (ssh, ssh-keyscan) is installed.\n", red.Render("Error:"))

	case errors.ErrCodeExecutionFailed:
		if code, ok := details["exitCode"]; ok {
			fmt.Fprintf(h.Out, "%s %v (exit code %v)\n", red.Render("Error:"), err, code)
		} else {
			fmt.Fprintf(h.Out, "%s %v\n", red.Render("Error:"), err)
		}

	default:
		fmt.Fprintf(h.Out, "%s %v\n", red.Render("Error:"), err)
	}

	if h.Verbose {
		if hopErr, ok := err.(*errors.HopError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", hopErr.ToJSON())
		}
	}
	return err
}

// Execute runs root and returns the exit code for main. Errors are
// printed by ErrorHandler; cobra's own printing is silenced.
func Execute(ctx context.Context, root *cobra.Command) int {
	root.SilenceErrors = true
	root.SilenceUsage = true

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitOK
	}

	opts := GetOptions(cmd)
	handler := NewErrorHandler(opts.Verbose)
	handler.Out = cmd.ErrOrStderr()
	handler.Handle(err)

	if errors.GetCode(err) == "" {
		// cobra argument and flag errors carry no code
		fmt.Fprintln(handler.Out, mutedStyle.Render(fmt.Sprintf("Run '%s --help' for usage.", cmd.CommandPath())))
	}
	return ExitCode(err)
}
