// Package routeguard decides whether a navigation may proceed given the
// current session state. The decision is a pure function of its inputs and
// is re-derived on every navigation, never cached.
package routeguard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskdeck-dev/taskdeck/internal/cli/session"
)

// LoginRoute is where unauthenticated navigations are redirected
const LoginRoute = "/login"

// defaultPublicRoutes are reachable without an authenticated session.
var defaultPublicRoutes = []string{
	"/",
	"/login",
	"/register",
	"/forgot-password",
	"/reset-password",
	"/oauth/callback",
}

// Decision classifies the outcome of evaluating a navigation
type Decision int

const (
	// DecisionPending means session hydration has not finished; render a
	// neutral placeholder and decide nothing.
	DecisionPending Decision = iota
	// DecisionAllow renders the requested view
	DecisionAllow
	// DecisionRedirect sends the navigation to Evaluation.RedirectTo
	DecisionRedirect
)

// Evaluation is the result of a guard check
type Evaluation struct {
	Decision   Decision
	RedirectTo string
}

// Guard holds the allow-list of routes reachable while anonymous
type Guard struct {
	public map[string]struct{}
}

// New returns a guard with the default allow-list
func New() *Guard {
	return newGuard(defaultPublicRoutes)
}

// routesFile is the YAML override shape for the allow-list
type routesFile struct {
	PublicRoutes []string `yaml:"public_routes"`
}

// NewFromFile returns a guard whose allow-list is read from a YAML file
func NewFromFile(path string) (*Guard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}

	var rf routesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}
	if len(rf.PublicRoutes) == 0 {
		return nil, fmt.Errorf("routes file lists no public routes")
	}
	return newGuard(rf.PublicRoutes), nil
}

func newGuard(routes []string) *Guard {
	public := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		public[r] = struct{}{}
	}
	return &Guard{public: public}
}

// Evaluate decides whether the requested path may render. AwaitingSecondFactor
// counts as unauthenticated: a half-finished login grants nothing.
func (g *Guard) Evaluate(hydrated bool, state session.State, path string) Evaluation {
	if !hydrated {
		return Evaluation{Decision: DecisionPending}
	}
	if _, ok := g.public[path]; ok {
		return Evaluation{Decision: DecisionAllow}
	}
	if state != session.StateAuthenticated {
		return Evaluation{Decision: DecisionRedirect, RedirectTo: LoginRoute}
	}
	return Evaluation{Decision: DecisionAllow}
}
