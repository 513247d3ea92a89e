package notebooksync

// State is one node of the per-notebook sync state machine: Idle →
// Fetching → Delta → Upsync → Postsync → Applying → Done,
// with side branches SoftFail (partial failure, sync continues) and
// HardFail (abort, nothing is persisted).
type State int

const (
	Idle State = iota
	Fetching
	Delta
	Upsync
	Postsync
	Applying
	Done
	SoftFail
	HardFail
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Fetching:
		return "Fetching"
	case Delta:
		return "Delta"
	case Upsync:
		return "Upsync"
	case Postsync:
		return "Postsync"
	case Applying:
		return "Applying"
	case Done:
		return "Done"
	case SoftFail:
		return "SoftFail"
	case HardFail:
		return "HardFail"
	default:
		return "Unknown"
	}
}

// Outcome is the terminal result of one notebook's sync cycle, consumed by
// the orchestrator to decide the account-level result.
type Outcome struct {
	State State
	Err   error

	// DeleteNotebook is set when the collection was found gone on the
	// server (404 on a collection-level PROPFIND/REPORT): Agent.Apply deletes
	// it locally, and the orchestrator runs Apply only after every sibling
	// has reached Postsync without a hard failure.
	DeleteNotebook bool

	// ItemFailures counts individual PUT/DELETE/database failures that
	// were soft-failed rather than aborting the whole notebook.
	ItemFailures int

	// AuthFailed is set when the fetch (etag or resource REPORT) in this
	// cycle classified as ErrAuthenticationFailed; authentication failures
	// of upload requests do not set it. The orchestrator marks account credentials
	// stale when true for any sibling.
	AuthFailed bool
}
