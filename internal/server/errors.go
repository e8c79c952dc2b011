package server

import (
	"errors"

	"github.com/lox/partybets/internal/engine"
	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/protocol"
	"github.com/lox/partybets/internal/room"
)

// errorCodes maps rejection sentinels to the stable codes clients switch on.
var errorCodes = []struct {
	err  error
	code string
}{
	{game.ErrWrongPhase, "wrong_phase"},
	{game.ErrRoundClosed, "round_closed"},
	{game.ErrAlreadySubmitted, "already_submitted"},
	{game.ErrUnknownOption, "unknown_option"},
	{game.ErrAmountOutOfRange, "amount_out_of_range"},
	{game.ErrInvalidChoice, "invalid_choice"},
	{room.ErrRoomFull, "room_full"},
	{room.ErrNotWaiting, "game_in_progress"},
	{room.ErrUnknownToken, "unknown_token"},
	{room.ErrUnknownPlayer, "unknown_player"},
	{room.ErrNameRequired, "name_required"},
	{room.ErrNameTooLong, "name_too_long"},
	{engine.ErrNotEnoughPlayers, "not_enough_players"},
	{engine.ErrGameInProgress, "game_in_progress"},
	{engine.ErrNotFinished, "not_finished"},
	{engine.ErrSessionStopped, "room_closed"},
	{engine.ErrInvariant, "internal"},
	{protocol.ErrUnknownMessageType, "unknown_type"},
	{errNotJoined, "not_joined"},
	{errAlreadyJoined, "already_joined"},
}

func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "bad_request"
}

func errorPayload(err error) protocol.Error {
	return protocol.Error{Code: errorCode(err), Message: err.Error()}
}
