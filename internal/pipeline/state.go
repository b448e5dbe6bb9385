package pipeline

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid transition")

type State string

const (
	Created    State = "created"
	Validating State = "validating"
	Probing    State = "probing"
	Encoding   State = "encoding"
	Publishing State = "publishing"
	Syncing    State = "syncing"
	Done       State = "done"
	Failed     State = "failed"
)

func CanTransition(from, to State) bool {
	switch from {
	case Created:
		return to == Validating || to == Failed
	case Validating:
		return to == Probing || to == Failed
	case Probing:
		return to == Encoding || to == Failed
	case Encoding:
		return to == Publishing || to == Failed
	case Publishing:
		return to == Syncing || to == Failed
	case Syncing:
		// catalog failures are absorbed, Syncing only ever ends in Done
		return to == Done
	case Done, Failed:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to State) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (s State) Terminal() bool {
	return s == Done || s == Failed
}
