package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/taskdeck-dev/taskdeck/internal/cli/gateway"
	"github.com/taskdeck-dev/taskdeck/internal/cli/routeguard"
	"github.com/taskdeck-dev/taskdeck/internal/cli/session"
	"github.com/taskdeck-dev/taskdeck/internal/cli/sessionstore"
	"github.com/taskdeck-dev/taskdeck/internal/logger"
)

const defaultAPIURL = "https://api.taskdeck.app"

// buildController wires the HTTP gateway and the file-backed session store
// into a controller. The API base URL can be overridden with TASKDECK_API_URL.
func buildController() (*session.Controller, error) {
	baseURL := os.Getenv("TASKDECK_API_URL")
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	store, err := sessionstore.New()
	if err != nil {
		return nil, err
	}

	return session.New(gateway.New(baseURL), store, logger.GetLogger()), nil
}

// guardRoute hydrates the controller and consults the route guard for the
// route a command corresponds to. Protected commands fail with a login hint
// instead of running.
func guardRoute(ctx context.Context, ctrl *session.Controller, path string) error {
	ctrl.Hydrate(ctx)

	eval := routeguard.New().Evaluate(ctrl.Hydrated(), ctrl.State(), path)
	if eval.Decision == routeguard.DecisionRedirect {
		return fmt.Errorf("not logged in. Please run 'taskdeck login' first")
	}
	return nil
}

// resultErr converts a failed controller result into a command error
func resultErr(res session.Result) error {
	if res.Status == session.StatusFailure {
		return errors.New(res.Message)
	}
	return nil
}

// promptPassword reads a password without echo when stdin is a terminal
func promptPassword(label string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("password is required in non-interactive mode (use the flag or environment variable)")
	}

	fmt.Printf("%s: ", label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// promptLine reads one trimmed line from stdin
func promptLine(label string) (string, error) {
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
