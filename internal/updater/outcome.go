package updater

// Stage names the step of the daily cycle an outcome refers to. Each cycle
// walks the stages in order; a failure reports the stage it stopped at.
type Stage string

const (
	StageLoad     Stage = "load"
	StageFetch    Stage = "fetch"
	StageLabel    Stage = "label"
	StageAppend   Stage = "append"
	StageFeatures Stage = "features"
	StageScore    Stage = "score"
	StageStats    Stage = "stats"
	StagePersist  Stage = "persist"
)

// Status classifies the result of one update cycle.
type Status string

const (
	// StatusUpdated means the cycle appended a bar, scored it, and persisted.
	StatusUpdated Status = "updated"
	// StatusAlreadyUpToDate means the fetched bar was already in the series;
	// nothing was mutated or persisted. Re-running a cycle is safe.
	StatusAlreadyUpToDate Status = "already_up_to_date"
	// StatusInsufficientHistory means the cycle appended and persisted, but
	// the series is still too short to build a full feature vector, so
	// scoring was skipped and no buy signal was issued.
	StatusInsufficientHistory Status = "insufficient_history"
	// StatusFailed means the cycle aborted; nothing was persisted.
	StatusFailed Status = "failed"
)

// Outcome is the structured result of one update cycle.
type Outcome struct {
	RunID       string   `json:"run_id"`
	Status      Status   `json:"status"`
	Stage       Stage    `json:"stage,omitempty"`
	Date        string   `json:"date,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
	Signal      int      `json:"signal"`
	Message     string   `json:"message,omitempty"`
}
