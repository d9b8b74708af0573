package signal

import (
	"context"
	"errors"

	"github.com/dkeye/jukebox/internal/app/orch"
	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/domain"
)

var (
	errBadPayload     = errors.New("bad payload")
	errUnknownCommand = errors.New("unknown command")
	errRateLimited    = errors.New("rate limited")
	errNoMedia        = errors.New("no media connection")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{errBadPayload, "bad_payload"},
	{errUnknownCommand, "unknown_command"},
	{errRateLimited, "rate_limited"},
	{errNoMedia, "no_media"},
	{orch.ErrNotInRoom, "not_in_room"},
	{orch.ErrLibraryUnavailable, "library_unavailable"},
	{playback.ErrNothingPlaying, "nothing_playing"},
	{playback.ErrAlreadyPaused, "already_paused"},
	{playback.ErrAlreadyPlaying, "already_playing"},
	{playback.ErrInvalidSeek, "invalid_seek"},
	{playback.ErrResolve, "resolve_failed"},
	{playback.ErrDecoderStart, "decoder_failed"},
	{playback.ErrEmptyQueue, "empty_queue"},
	{playback.ErrSessionClosed, "bot_disconnected"},
	{domain.ErrNotFound, "not_found"},
	{domain.ErrDuplicate, "duplicate"},
	{domain.ErrEmptyName, "empty_name"},
	{domain.ErrNameTooLong, "name_too_long"},
	{domain.ErrEmptyRef, "empty_ref"},
	{context.DeadlineExceeded, "timeout"},
}

// errorCode maps err to the stable code clients see.
func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

type okReply struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Data    any    `json:"data,omitempty"`
}

type errorReply struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error"`
}

type infoReply struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Message string `json:"message"`
}

func (ctl *SignalWSController) sendOK(c *WsSignalConn, command string, data any) {
	ctl.sendJSON(c, okReply{Type: "ok", Command: command, Data: data})
}

// sendError replies with the code of err. "Nothing playing" is not a
// failure and goes out as an info message.
func (ctl *SignalWSController) sendError(c *WsSignalConn, command string, err error) {
	if errors.Is(err, playback.ErrNothingPlaying) {
		ctl.sendJSON(c, infoReply{Type: "info", Command: command, Message: "nothing_playing"})
		return
	}
	ctl.sendJSON(c, errorReply{Type: "error", Command: command, Error: errorCode(err)})
}

// reply sends ok with data, or the error.
func (ctl *SignalWSController) reply(c *WsSignalConn, command string, data any, err error) {
	if err != nil {
		ctl.sendError(c, command, err)
		return
	}
	ctl.sendOK(c, command, data)
}
