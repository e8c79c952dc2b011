package game

import "errors"

// Rejections returned to the submitting player. A rejected submission leaves
// the round untouched.
var (
	ErrWrongPhase       = errors.New("not accepting submissions in this phase")
	ErrRoundClosed      = errors.New("round is closed")
	ErrAlreadySubmitted = errors.New("already submitted this round")
	ErrUnknownOption    = errors.New("unknown option")
	ErrAmountOutOfRange = errors.New("amount out of range")
	ErrInvalidChoice    = errors.New("invalid choice")
)
