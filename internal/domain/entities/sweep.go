package entities

import "time"

// SweepReport aggregates the outcome of one reconciliation sweep.
type SweepReport struct {
	Verified     int           `json:"verifiedCount"`
	Kicked       int           `json:"kickedCount"`
	FailedKick   int           `json:"failedKickCount"`
	FailedLookup int           `json:"failedLookupCount"`
	Portals      int           `json:"portalCount"`
	Duration     time.Duration `json:"-"`
}

// Add merges another report into r.
func (r *SweepReport) Add(other SweepReport) {
	r.Verified += other.Verified
	r.Kicked += other.Kicked
	r.FailedKick += other.FailedKick
	r.FailedLookup += other.FailedLookup
	r.Portals += other.Portals
}

// SideEffectOutcome describes what happened to a best-effort action.
type SideEffectOutcome string

const (
	SideEffectDone    SideEffectOutcome = "done"
	SideEffectIgnored SideEffectOutcome = "ignored"
	SideEffectSkipped SideEffectOutcome = "skipped"
)

// SideEffect is the result of a best-effort platform call. A failed call is
// recorded as ignored together with its error instead of being discarded.
type SideEffect struct {
	Action  string
	Outcome SideEffectOutcome
	Err     error
}
