package agent

// Status describes how a Process call ended.
type Status string

const (
	// StatusCompleted - the model produced a final text answer.
	StatusCompleted Status = "completed"

	// StatusIterationLimit - the round bound was reached before the model
	// stopped asking for tools. Not an error: the partial work is committed.
	StatusIterationLimit Status = "iteration_limit"
)

// Result is the outcome of one user turn.
type Result struct {
	Text      string
	Status    Status
	Rounds    int
	ToolCalls int
}
