package gateway

import (
	"errors"

	"rpg-lite/apps/server/internal/arena"
	"rpg-lite/apps/server/internal/engine"
	"rpg-lite/apps/server/internal/eventpool"
	"rpg-lite/progression"
)

var errForbidden = errors.New("forbidden")

const (
	codeBadRequest = "bad_request"
	codeInternal   = "internal"
)

var codeTable = []struct {
	err  error
	code string
}{
	{progression.ErrInsufficientFunds, "insufficient_funds"},
	{progression.ErrAlreadyAtCap, "already_at_cap"},
	{progression.ErrNothingToRedeem, "nothing_to_redeem"},
	{progression.ErrIncapacitated, "incapacitated"},
	{progression.ErrUnsupportedItem, "unsupported_item"},
	{progression.ErrEmptyLetter, "empty_letter"},
	{engine.ErrUnknownItem, "unknown_item"},
	{engine.ErrModuleDisabled, "module_disabled"},
	{arena.ErrBusy, "busy"},
	{arena.ErrChallengeNotFound, "not_found"},
	{eventpool.ErrBallotNotFound, "not_found"},
	{arena.ErrChallengeExpired, "expired"},
	{arena.ErrNotParticipant, "forbidden"},
	{errForbidden, "forbidden"},
	{arena.ErrWrongState, "wrong_state"},
	{eventpool.ErrAlreadyVoted, "already_voted"},
	{eventpool.ErrBallotClosed, "ballot_closed"},
	{engine.ErrCardTooLong, codeBadRequest},
	{engine.ErrBadReminder, codeBadRequest},
	{engine.ErrInvalidScope, codeBadRequest},
	{eventpool.ErrEmptyEvent, codeBadRequest},
	{errBadRequest, codeBadRequest},
}

// codeOf maps an engine error to the stable code bridges switch on.
func codeOf(err error) string {
	var invalid progression.InvalidTargetError
	if errors.As(err, &invalid) {
		return "invalid_target"
	}
	for _, row := range codeTable {
		if errors.Is(err, row.err) {
			return row.code
		}
	}
	return codeInternal
}
