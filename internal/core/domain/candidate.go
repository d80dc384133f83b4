package domain

// IceCandidate is an opaque connectivity hint for one possible network path
// between the peers. Candidate is engine-specific; the nullable fields tie
// it to a media section of the session description.
type IceCandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
}

// Valid reports whether the descriptor carries any candidate data at all.
// Whether it matches the current negotiation round's ICE credentials is for
// the engine to decide when it is applied.
func (c IceCandidate) Valid() bool {
	return c.Candidate != ""
}

// CandidateQueue buffers candidates that arrive before the negotiation
// engine has a remote description, in arrival order. It is scoped to one
// negotiation attempt and owned by the call service, which serializes all
// access; it is discarded, not cleared, when the attempt is superseded.
type CandidateQueue struct {
	items []IceCandidate
}

func NewCandidateQueue() *CandidateQueue {
	return &CandidateQueue{}
}

func (q *CandidateQueue) Push(c IceCandidate) {
	q.items = append(q.items, c)
}

func (q *CandidateQueue) Len() int {
	return len(q.items)
}

// Drain empties the queue and returns its contents in arrival order.
func (q *CandidateQueue) Drain() []IceCandidate {
	items := q.items
	q.items = nil
	return items
}
