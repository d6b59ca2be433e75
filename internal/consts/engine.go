package consts

// SuspensionState values stored on definitions, executions and tasks.
const (
	SuspensionActive    = 1
	SuspensionSuspended = 2
)

type HistoryLevel string

const (
	HistoryNone     HistoryLevel = "none"
	HistoryActivity HistoryLevel = "activity"
	HistoryAudit    HistoryLevel = "audit"
	HistoryFull     HistoryLevel = "full"
)

// Rank orders levels so callers can ask "at least audit".
func (h HistoryLevel) Rank() int {
	switch h {
	case HistoryNone:
		return 0
	case HistoryActivity:
		return 1
	case HistoryAudit:
		return 2
	case HistoryFull:
		return 3
	default:
		return -1
	}
}

func (h HistoryLevel) AtLeast(o HistoryLevel) bool { return h.Rank() >= o.Rank() }

// Identity link types.
const (
	LinkAssignee    = "assignee"
	LinkCandidate   = "candidate"
	LinkOwner       = "owner"
	LinkStarter     = "starter"
	LinkParticipant = "participant"
)

// Job types and handlers.
const (
	JobTypeMessage = "message"
	JobTypeTimer   = "timer"

	JobHandlerAsyncContinuation = "async-continuation"
	JobHandlerTimerTransition   = "timer-transition"

	DefaultJobRetries = 3
)

const (
	DelegationPending  = "pending"
	DelegationResolved = "resolved"
)

// Historic detail types.
const (
	DetailVariableUpdate = "variableUpdate"
	DetailFormProperty   = "formProperty"
)

const (
	CommentTypeComment = "comment"
	CommentTypeEvent   = "event"
)

const DeleteReasonCompleted = "completed"

const ENGINE_VERSION = "5.17.0-procflow"
