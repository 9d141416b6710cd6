package tracking

import (
	"github.com/nvr-ai/finishline/recognition"
)

// CrossingReport records one identity crossing the finish line.
type CrossingReport struct {
	// Identity is the catalog name of the object.
	Identity string `json:"identity"`
	// Order is the 1-based position in the crossing sequence.
	Order int `json:"order"`
	// Frame is the index of the frame the crossing fired on.
	Frame int `json:"frame"`
}

// Session is the ordered set of identities that have crossed during one
// video. It is owned by a single tracking loop.
type Session struct {
	reports []CrossingReport
	seen    map[string]struct{}
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{seen: make(map[string]struct{})}
}

// Add records identity as crossed at frame. An identity already present,
// an empty identity or recognition.Unknown is ignored.
//
// Returns:
//   - CrossingReport: The new report, zero if nothing was added.
//   - bool: Whether the identity was added.
func (s *Session) Add(identity string, frame int) (CrossingReport, bool) {
	if identity == "" || identity == recognition.Unknown {
		return CrossingReport{}, false
	}
	if _, ok := s.seen[identity]; ok {
		return CrossingReport{}, false
	}

	report := CrossingReport{Identity: identity, Order: len(s.reports) + 1, Frame: frame}
	s.seen[identity] = struct{}{}
	s.reports = append(s.reports, report)
	return report, true
}

// Contains reports whether identity has crossed.
func (s *Session) Contains(identity string) bool {
	_, ok := s.seen[identity]
	return ok
}

// Reports returns a copy of the reports in crossing order.
func (s *Session) Reports() []CrossingReport {
	out := make([]CrossingReport, len(s.reports))
	copy(out, s.reports)
	return out
}

// Len returns the number of identities recorded.
func (s *Session) Len() int {
	return len(s.reports)
}

// Reset empties the session.
func (s *Session) Reset() {
	s.reports = nil
	s.seen = make(map[string]struct{})
}
