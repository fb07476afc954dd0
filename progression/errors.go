package progression

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyAtCap      = errors.New("hp already at cap")
	ErrNothingToRedeem   = errors.New("nothing to redeem")
	ErrIncapacitated     = errors.New("incapacitated")
	ErrUnsupportedItem   = errors.New("item has no usable effect")
	ErrEmptyLetter       = errors.New("letter is empty")
	ErrDuelFinished      = errors.New("duel already finished")
)

type InvalidTargetError string

func (e InvalidTargetError) Error() string { return "invalid target: " + string(e) }

func ErrInvalidTarget(msg string) error { return InvalidTargetError(msg) }
