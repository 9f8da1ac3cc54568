package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/sightpath/go-sightpath/pkg/detect"
)

// WebRTC receives video from a wearable camera over WebRTC. A small
// signalling server on the device brokers the session; the camera
// publishes itself as a producer and we attach as a receive-only peer.
type WebRTC struct {
	signallingURL string
	producerName  string
	logger        *slog.Logger
	decoder       *Decoder

	ws      *websocket.Conn
	wsMu    sync.Mutex
	pc      *webrtc.PeerConnection
	peerID  string
	prodID  string
	sessID  string
	trackCh chan struct{}

	frameMu sync.RWMutex
	latest  detect.Frame

	closed bool
}

// WebRTCOption configures a WebRTC source.
type WebRTCOption func(*WebRTC)

// WithProducerName selects which signalling producer to attach to.
func WithProducerName(name string) WebRTCOption {
	return func(w *WebRTC) { w.producerName = name }
}

// WithWebRTCLogger sets the structured logger.
func WithWebRTCLogger(logger *slog.Logger) WebRTCOption {
	return func(w *WebRTC) { w.logger = logger.With("component", "camera.webrtc") }
}

// NewWebRTC creates a source for the signalling server at url
// (ws://host:port).
func NewWebRTC(url string, opts ...WebRTCOption) *WebRTC {
	w := &WebRTC{
		signallingURL: url,
		producerName:  "sightpath-camera",
		logger:        slog.Default().With("component", "camera.webrtc"),
		decoder:       NewDecoder(100 * time.Millisecond),
		trackCh:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Connect brokers the WebRTC session and starts receiving frames.
func (w *WebRTC) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.signallingURL, nil)
	if err != nil {
		return fmt.Errorf("camera: signalling connect: %w", err)
	}
	w.ws = conn

	if err := w.waitForWelcome(); err != nil {
		return fmt.Errorf("camera: welcome: %w", err)
	}
	if err := w.findProducer(); err != nil {
		return fmt.Errorf("camera: find producer: %w", err)
	}
	if err := w.createPeerConnection(); err != nil {
		return fmt.Errorf("camera: peer connection: %w", err)
	}
	if err := w.writeJSON(map[string]string{"type": "startSession", "peerId": w.prodID}); err != nil {
		return fmt.Errorf("camera: start session: %w", err)
	}

	go w.handleSignalling()

	select {
	case <-w.trackCh:
		w.logger.Info("video track attached", "producer", w.producerName)
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(15 * time.Second):
		return fmt.Errorf("camera: timeout waiting for video track")
	}
	return nil
}

func (w *WebRTC) waitForWelcome() error {
	w.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := w.ws.ReadMessage()
	w.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %q", welcome.Type)
	}
	w.peerID = welcome.PeerID
	return nil
}

func (w *WebRTC) findProducer() error {
	if err := w.writeJSON(map[string]string{"type": "list"}); err != nil {
		return err
	}

	w.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := w.ws.ReadMessage()
	w.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var list struct {
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &list); err != nil {
		return err
	}
	for _, p := range list.Producers {
		if p.Meta["name"] == w.producerName {
			w.prodID = p.ID
			return nil
		}
	}
	return fmt.Errorf("producer %q not found among %d producers", w.producerName, len(list.Producers))
}

func (w *WebRTC) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	w.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		w.logger.Info("track received", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go w.consumeTrack(track)
		}
	})
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			w.sendICECandidate(candidate)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		w.logger.Debug("connection state", "state", state.String())
	})
	return nil
}

func (w *WebRTC) handleSignalling() {
	for !w.closed {
		_, msg, err := w.ws.ReadMessage()
		if err != nil {
			if !w.closed {
				w.logger.Warn("signalling read failed", "error", err)
			}
			return
		}

		var base struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "sessionStarted":
			w.sessID = base.SessionID
		case "peer":
			w.handlePeerMessage(msg)
		case "endSession":
			return
		}
	}
}

type peerMessage struct {
	SDP *struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	} `json:"sdp"`
	ICE *struct {
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
	} `json:"ice"`
}

func (w *WebRTC) handlePeerMessage(msg []byte) {
	var pm peerMessage
	if err := json.Unmarshal(msg, &pm); err != nil {
		return
	}

	if pm.SDP != nil && pm.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: pm.SDP.SDP}
		if err := w.pc.SetRemoteDescription(offer); err != nil {
			w.logger.Warn("set remote description failed", "error", err)
			return
		}
		answer, err := w.pc.CreateAnswer(nil)
		if err != nil {
			w.logger.Warn("create answer failed", "error", err)
			return
		}
		if err := w.pc.SetLocalDescription(answer); err != nil {
			w.logger.Warn("set local description failed", "error", err)
			return
		}
		w.sendSDP(answer)
	}

	if pm.ICE != nil {
		init := webrtc.ICECandidateInit{
			Candidate:     pm.ICE.Candidate,
			SDPMid:        pm.ICE.SDPMid,
			SDPMLineIndex: pm.ICE.SDPMLineIndex,
		}
		if err := w.pc.AddICECandidate(init); err != nil {
			w.logger.Debug("add ICE candidate failed", "error", err)
		}
	}
}

func (w *WebRTC) sendSDP(sdp webrtc.SessionDescription) {
	msg := map[string]any{
		"type":      "peer",
		"sessionId": w.sessID,
		"sdp":       map[string]string{"type": sdp.Type.String(), "sdp": sdp.SDP},
	}
	if err := w.writeJSON(msg); err != nil {
		w.logger.Warn("send SDP failed", "error", err)
	}
}

func (w *WebRTC) sendICECandidate(candidate *webrtc.ICECandidate) {
	if w.sessID == "" {
		return
	}
	init := candidate.ToJSON()
	msg := map[string]any{
		"type":      "peer",
		"sessionId": w.sessID,
		"ice": map[string]any{
			"candidate":     init.Candidate,
			"sdpMid":        init.SDPMid,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	}
	if err := w.writeJSON(msg); err != nil {
		w.logger.Warn("send ICE candidate failed", "error", err)
	}
}

func (w *WebRTC) writeJSON(v any) error {
	w.wsMu.Lock()
	defer w.wsMu.Unlock()
	return w.ws.WriteJSON(v)
}

// consumeTrack accumulates H264 NAL units from RTP and decodes them to
// JPEG frames at the decoder's cadence.
func (w *WebRTC) consumeTrack(track *webrtc.TrackRemote) {
	select {
	case w.trackCh <- struct{}{}:
	default:
	}

	var nalBuf bytes.Buffer
	var pkt *rtp.Packet
	var err error
	for !w.closed {
		pkt, _, err = track.ReadRTP()
		if err != nil {
			return
		}
		nalBuf.Write(pkt.Payload)

		jpegData, derr := w.decoder.DecodeNAL(nalBuf.Bytes())
		if derr != nil || jpegData == nil {
			continue
		}
		nalBuf.Reset()

		frame, ferr := frameFromJPEG(jpegData)
		if ferr != nil {
			continue
		}
		w.frameMu.Lock()
		w.latest = frame
		w.frameMu.Unlock()
	}
}

// Frame returns a copy of the most recent decoded frame.
func (w *WebRTC) Frame(ctx context.Context) (detect.Frame, error) {
	w.frameMu.RLock()
	defer w.frameMu.RUnlock()
	if w.latest.JPEG == nil {
		return detect.Frame{}, ErrNoFrame
	}
	f := w.latest
	f.JPEG = make([]byte, len(w.latest.JPEG))
	copy(f.JPEG, w.latest.JPEG)
	return f, nil
}

// Close tears down the session.
func (w *WebRTC) Close() error {
	w.closed = true
	if w.pc != nil {
		w.pc.Close()
	}
	if w.ws != nil {
		w.ws.Close()
	}
	return nil
}
