// Package webrtcsink streams outbound pose/path snapshots to a
// base-station viewer over a WebRTC data channel. It is the visualization
// surface named as an external collaborator in §1; this package only
// frames and publishes snapshots onto an already-open data channel, never
// the camera/depth video pipeline (that is Non-goal CV/GPU territory).
// Grounded on ariadne's output.Sink interface (engine/internal/output/sink.go),
// generalized from a CrawlResult writer to a telemetry publisher, and
// wired against github.com/pion/webrtc/v3 per viamrobotics-rdk's go.mod.
package webrtcsink

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
)

// PublishSink streams JSON-encoded Snapshot values over a WebRTC data
// channel to a single connected viewer. Full SDP/ICE negotiation beyond a
// single offer/answer exchange is out of scope (§1 Non-goals name
// visualization only as a collaborator surface); the sink exposes
// Offer/Close and no-ops when unconfigured.
type PublishSink struct {
	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	channel *webrtc.DataChannel
	ready   bool
	closed  bool
}

// Snapshot is the JSON-serializable payload published on every Write,
// grounded on ariadne's PipelineMetrics dump shape (§3 ADD).
type Snapshot struct {
	Translation [3]float64 `json:"translation"`
	Quaternion  [4]float64 `json:"quaternion"`
	Stage       string     `json:"stage"`
	PathLen     int        `json:"path_len"`
}

// NewDisabled returns a PublishSink with no underlying peer connection; all
// Write calls no-op, the stand-in for "unconfigured" in §6's ADD note.
func NewDisabled() *PublishSink { return &PublishSink{} }

// Offer creates a PeerConnection with a single unreliable, unordered data
// channel (pose snapshots are fire-and-forget telemetry, not the reliable
// lunabase control link) and returns the local SDP offer the caller must
// deliver to the viewer out-of-band (the signaling transport itself is a
// Non-goal).
func (s *PublishSink) Offer() (webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcsink: create peer connection: %w", err)
	}
	ordered := false
	maxRetransmits := uint16(0)
	channel, err := pc.CreateDataChannel("telemetry", &webrtc.DataChannelInit{Ordered: &ordered, MaxRetransmits: &maxRetransmits})
	if err != nil {
		_ = pc.Close()
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcsink: create data channel: %w", err)
	}
	channel.OnOpen(func() {
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
	})
	channel.OnClose(func() {
		s.mu.Lock()
		s.ready = false
		s.mu.Unlock()
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcsink: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcsink: set local description: %w", err)
	}

	s.pc = pc
	s.channel = channel
	return offer, nil
}

// SetAnswer applies the viewer's SDP answer, completing the negotiation
// Offer started.
func (s *PublishSink) SetAnswer(answer webrtc.SessionDescription) error {
	s.mu.Lock()
	pc := s.pc
	s.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("webrtcsink: SetAnswer called before Offer")
	}
	return pc.SetRemoteDescription(answer)
}

// Write publishes snap as one JSON message on the data channel. It is a
// no-op when the sink is disabled, the channel has not yet opened, or the
// sink has been closed — visualization is best-effort and never blocks the
// autonomy loop that calls it.
func (s *PublishSink) Write(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.channel == nil || !s.ready {
		return nil
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("webrtcsink: marshal snapshot: %w", err)
	}
	return s.channel.Send(body)
}

// Close idempotently tears down the peer connection, if any.
func (s *PublishSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pc == nil {
		return nil
	}
	return s.pc.Close()
}

// Name identifies this sink for logs/metrics, matching the OutputSink
// contract it is grounded on.
func (s *PublishSink) Name() string { return "webrtc-telemetry" }
