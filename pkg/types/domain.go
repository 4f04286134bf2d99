package types

// Wire-format limits. These are fixed by the position encoding and the policy
// vocabulary, not by any particular network file.
const (
	// InputPlanes is the number of (mask, value) plane pairs per position.
	InputPlanes = 112
	// MaxMoves is the maximum number of legal move ids per position.
	MaxMoves = 96
	// PolicyVocabulary is the size of the full move-identifier space scored
	// by policy heads. Per-position policy values are gathered from it using
	// the caller-supplied move list.
	PolicyVocabulary = 1858
)

// Plane is one (bitmask, scalar) pair of the position encoding.
type Plane struct {
	// 64-bit occupancy mask, one bit per board square.
	Mask uint64 `json:"mask"`
	// Scalar broadcast to every set square of the mask.
	Value float32 `json:"value"`
}

// Position is one board position to score. The plane order is significant and
// fixed; Moves lists the legal move identifiers policy values are wanted for.
type Position struct {
	Planes [InputPlanes]Plane `json:"planes"`
	// Position hash, carried through for caller-side bookkeeping.
	Hash uint64 `json:"hash"`
	// Legal move identifiers, at most MaxMoves, each < PolicyVocabulary.
	Moves []uint16 `json:"moves"`
}

// Evaluation is the per-position output record.
type Evaluation struct {
	// Value score in [-1, 1]. For win/draw/loss heads this is w - l.
	// example: 0.0731
	Q float32 `json:"q"`
	// Draw probability; zero for classical value heads.
	// example: 0.55
	D float32 `json:"d"`
	// Policy probabilities, index-aligned to the request's move list.
	P []float32 `json:"p"`
	// Moves-remaining estimate; zero when the head is absent.
	// example: 41.2
	M float32 `json:"m"`
}

// Network describes a discoverable weight file on disk.
type Network struct {
	// Stable identifier (the filename).
	// example: t60-64x6.nnwb
	ID string `json:"id" example:"t60-64x6.nnwb"`
	// Human-friendly name.
	Name string `json:"name"`
	// Absolute path to the weight file.
	Path string `json:"path"`
}
