package domain

import (
	"errors"
	"fmt"
)

// ErrNoSuchDesign is returned when a design ID cannot be found in the store.
var ErrNoSuchDesign = errors.New("no such design")

// ErrDesignExists is returned when a design is created under an ID already in use.
var ErrDesignExists = errors.New("design already exists")

// ErrNoSuchLocus is returned when a locus path does not exist in a dialogue scope.
var ErrNoSuchLocus = errors.New("no such locus")

// ErrMalformedChronicle is returned when an act would break the ordering or
// justification rules of a design. The design is left unchanged.
var ErrMalformedChronicle = errors.New("malformed chronicle")

// ErrEnsureLocusFailed is returned when the locus tree could not be built for a path.
var ErrEnsureLocusFailed = errors.New("ensure locus failed")

// ErrPolarityMismatch is returned when two designs of the same polarity are interacted.
var ErrPolarityMismatch = errors.New("designs must have opposite polarity")

// ErrMixedPlayers is returned when a view set mixes views of both players.
var ErrMixedPlayers = errors.New("views belong to different players")

// ErrIllegalMove is returned by the move layer when a dialogue move is not legal.
var ErrIllegalMove = errors.New("illegal move")

// ErrDialogueClosed is returned when a move is made after CLOSE.
var ErrDialogueClosed = errors.New("dialogue closed")

// ChronicleError describes why an act was rejected by a design.
type ChronicleError struct {
	DesignID string
	Locus    string
	Reason   string
}

func (e *ChronicleError) Error() string {
	if e.Locus == "" {
		return fmt.Sprintf("malformed chronicle in design %q: %s", e.DesignID, e.Reason)
	}
	return fmt.Sprintf("malformed chronicle in design %q at %q: %s", e.DesignID, e.Locus, e.Reason)
}

func (e *ChronicleError) Unwrap() error {
	return ErrMalformedChronicle
}
