package session

// State is the controller's position in the authentication lifecycle
type State int

const (
	StateAnonymous State = iota
	StateAwaitingSecondFactor
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Status classifies the outcome of a controller operation
type Status int

const (
	StatusSuccess Status = iota
	StatusChallengeRequired
	StatusFailure
)

// FailureCode classifies a failed operation
type FailureCode string

const (
	// FailureCredentialRejected means the gateway refused the credentials;
	// Message carries the server's reason verbatim.
	FailureCredentialRejected FailureCode = "credential_rejected"
	// FailureValidation means a client-side pre-check failed before any
	// network call was made.
	FailureValidation FailureCode = "validation_failed"
	// FailureTransport means a network error or undecodable response;
	// Message is a generic string and the detail goes to the log.
	FailureTransport FailureCode = "transport"
	// FailureInvalidState means the operation was invoked in a state it does
	// not support, including a response superseded by a newer request.
	FailureInvalidState FailureCode = "invalid_state"
)

// transportMessage is the only transport detail shown to users.
const transportMessage = "an error occurred, please try again"

// Result is the uniform outcome of every controller operation. Operations
// never propagate errors; all failure modes are represented here.
type Result struct {
	Status  Status
	Code    FailureCode
	Message string

	// NeedsAdditionalDetails is set on a successful OAuth login whose
	// account still needs profile completion.
	NeedsAdditionalDetails bool
}

// OK reports whether the operation succeeded outright
func (r Result) OK() bool { return r.Status == StatusSuccess }

// ChallengeRequired reports whether a second factor is now pending
func (r Result) ChallengeRequired() bool { return r.Status == StatusChallengeRequired }

func success() Result {
	return Result{Status: StatusSuccess}
}

func challengeRequired() Result {
	return Result{Status: StatusChallengeRequired}
}

func failure(code FailureCode, message string) Result {
	return Result{Status: StatusFailure, Code: code, Message: message}
}
