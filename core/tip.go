package core

import (
	"bytes"
	"fmt"
)

// Tip identifies the head of a chain: the epoch and sequence number of
// its latest committed block plus the block's hash.
type Tip struct {
	Epoch    uint32 `json:"epoch"`
	Sequence uint32 `json:"sequence"`
	Digest   Hash   `json:"digest"`
}

// IsZero reports whether t is the zero-value tip (chain has no blocks yet).
func (t Tip) IsZero() bool {
	return t.Epoch == 0 && t.Sequence == 0 && t.Digest.IsZero()
}

// MarshalBinary encodes t for storage as a tip-table value.
func (t Tip) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	writeTip(&buf, t)
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a tip-table value produced by MarshalBinary.
func (t *Tip) UnmarshalBinary(data []byte) error {
	got, err := readTip(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("tip: %w", err)
	}
	*t = got
	return nil
}

// NumDelegates is the fixed number of delegates per epoch. Any delegate
// index outside [0, NumDelegates) is invalid.
const NumDelegates = 32

// Delegate is one of the NumDelegates validators for an epoch.
type Delegate struct {
	Account       Hash   `json:"account"`
	ConsensusKey  []byte `json:"consensus_pubkey"`
	EciesKey      []byte `json:"ecies_pubkey"`
	VoteWeight    uint64 `json:"vote_weight"`
	Stake         uint64 `json:"stake"`
	StartingTerm  uint32 `json:"starting_term"`
}

// ValidDelegateID reports whether id is a legal delegate index.
func ValidDelegateID(id uint8) bool {
	return int(id) < NumDelegates
}
