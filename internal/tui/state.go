package tui

import "time"

type Snapshot struct {
	Timestamp time.Time
	Accounts  []AccountState
	Totals    Totals
	Total     int // configured accounts, including not-yet-started ones
	Done      bool
}

type AccountState struct {
	Label   string
	Phase   string // credentials|authenticating|inspecting|solving|verifying|done
	Status  string // success|skipped|cooldown|timeout|error, empty while running
	Message string
	Elapsed time.Duration
}

type Totals struct {
	Success int
	Skipped int
	Failed  int
}
