package chain

import "crypto/sha256"

// Announcement is the commit half of the commit/assert pairing used to bind
// independently-spent coins into one atomic transaction. OriginInfo is a
// coin id or a puzzle hash depending on the announcement kind.
type Announcement struct {
	OriginInfo Bytes32
	Message    []byte
	// MorphBytes, when present, is prepended and hashed with the message
	// before the origin is mixed in.
	MorphBytes []byte
}

// ID returns sha256(origin || morphed message), where the morphed message is
// sha256(morph || message) when morph bytes are present and the raw message
// otherwise.
func (a Announcement) ID() Bytes32 {
	msg := a.Message
	if len(a.MorphBytes) > 0 {
		morphed := sha256.Sum256(append(append([]byte{}, a.MorphBytes...), a.Message...))
		msg = morphed[:]
	}
	h := sha256.New()
	h.Write(a.OriginInfo[:])
	h.Write(msg)
	var out Bytes32
	copy(out[:], h.Sum(nil))
	return out
}
