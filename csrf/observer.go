package csrf

// Reason names the check a validation stopped at.
type Reason int

const (
	ReasonOK       Reason = iota
	ReasonMissing         // no candidate, or no token in the session
	ReasonMismatch        // candidate differs from the stored token
	ReasonExpired         // stored expiry has passed, or is unusable
	ReasonOrigin          // Origin/Referer host differs from the request host
	ReasonSession         // the session store failed
)

var reasonNames = [...]string{
	ReasonOK:       "ok",
	ReasonMissing:  "missing",
	ReasonMismatch: "mismatch",
	ReasonExpired:  "expired",
	ReasonOrigin:   "origin",
	ReasonSession:  "session",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

// Observer receives token lifecycle events, e.g. for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	TokenIssued()
	TokenDeleted()
	TokenChecked(Reason)
}

type nopObserver struct{}

func (nopObserver) TokenIssued()        {}
func (nopObserver) TokenDeleted()       {}
func (nopObserver) TokenChecked(Reason) {}
