package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect   Action = "select"
	ActionClear    Action = "clear"
	ActionMark     Action = "mark"
	ActionGoto     Action = "goto"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is every client message. Fields unused by an action are ignored.
type Request struct {
	Action     Action `json:"action"`
	QuestionID int64  `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Index      int    `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState        Event = "state"
	EventTick         Event = "tick"
	EventTimeUp       Event = "time_up"
	EventSubmitted    Event = "submitted"
	EventSubmitFailed Event = "submit_failed"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// StateResponse carries the full session. A null session means it ended.
type StateResponse struct {
	Event   Event `json:"event"`
	Session any   `json:"session"`
}

// TickResponse carries the countdown.
type TickResponse struct {
	Event Event `json:"event"`
	Timer any   `json:"timer"`
}

// SubmittedResponse carries the recorded attempt.
type SubmittedResponse struct {
	Event  Event `json:"event"`
	Result any   `json:"result"`
}

// SubmitFailedResponse reports a failed submission; the session stays open.
type SubmitFailedResponse struct {
	Event   Event  `json:"event"`
	Error   string `json:"error"`
	Session any    `json:"session"`
}

type ErrorResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action,omitempty"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
