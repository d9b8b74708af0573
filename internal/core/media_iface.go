package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is a listener's WebRTC leg. The server only sends audio.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	AddICECandidate(webrtc.ICECandidateInit) error
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	OnICECandidate(func(webrtc.ICECandidateInit))
	// AddLocalTrack attaches the room's broadcast track to the underlying PeerConnection.
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	OnClosed(func())
}
