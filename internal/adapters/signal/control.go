package signal

import (
	"context"

	"github.com/dkeye/jukebox/internal/core"
)

func (ctl *SignalWSController) handlePing(
	_ context.Context,
	_ core.SessionID,
	conn *WsSignalConn,
	_ []byte,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}
