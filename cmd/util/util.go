package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/manifoldco/promptui"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/sidkik/bak/pkg/errors"
)

// Mocked out for unit testing.
var (
	exit       = os.Exit
	stderr     io.Writer = os.Stderr
	isTerminal           = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	runPrompt            = func(p promptui.Prompt) (string, error) { return p.Run() }
)

// HandleFatalError handles errors that are severe enough to terminate the
// program.
func HandleFatalError(err error) {
	if msg, ok := errors.GetFriendlyMessage(err); ok {
		fmt.Fprintln(stderr, msg)
		log.WithError(err).Debug("Full error")
		exit(1)
		return
	}

	log.WithError(err).Error("Fatal error")
	exit(1)
}

// HandlePanic logs the panic with its stack trace before crashing, so that
// the trace ends up in bug reports.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Unexpected panic: %v", r)
		exit(1)
	}
}

// PromptYesOrNo asks the user to confirm `msg`. When stdin isn't a terminal
// nobody can answer, so it returns false without prompting.
func PromptYesOrNo(msg string) (bool, error) {
	if !isTerminal() {
		log.Debug("Stdin isn't a terminal. Treating the confirmation prompt as declined.")
		return false, nil
	}

	answer, err := runPrompt(promptui.Prompt{
		Label:     msg,
		IsConfirm: true,
	})
	switch {
	// promptui reports a declined confirmation as an error.
	case err == promptui.ErrAbort:
		return false, nil
	case err == promptui.ErrInterrupt:
		return false, errors.NewFriendlyError("Interrupted.")
	case err != nil:
		return false, errors.WithContext(err, "prompt")
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// SetupLogging sets the log level from `level`. Debug logging is forced on
// when `verboseEnvKey` is set to "true".
func SetupLogging(level, verboseEnvKey string) error {
	if os.Getenv(verboseEnvKey) == "true" {
		log.SetLevel(log.DebugLevel)
		return nil
	}

	parsed, err := log.ParseLevel(level)
	if err != nil {
		return errors.NewFriendlyError("Invalid log level %q. "+
			"Expected one of debug, info, warning, or error.", level)
	}
	log.SetLevel(parsed)
	return nil
}
