package stateful

import (
	"time"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/state"
)

// convertCall snapshots an SDK call, including its current participants and
// streams, for the initial mirror. Later deltas arrive through events.
func convertCall(c calling.Call) *state.Call {
	sc := &state.Call{
		ID:                    c.ID(),
		State:                 c.State(),
		CallerID:              c.CallerID(),
		IsMuted:               c.IsMuted(),
		IsRecordingActive:     c.IsRecordingActive(),
		IsTranscriptionActive: c.IsTranscriptionActive(),
		StartTime:             time.Now(),
		LocalVideoStreams:     convertLocalStreams(c.LocalVideoStreams()),
		RemoteParticipants:    make(map[string]*state.RemoteParticipant),
	}
	for _, p := range c.RemoteParticipants() {
		sc.RemoteParticipants[p.ID()] = convertParticipant(p)
	}
	return sc
}

func convertParticipant(p calling.RemoteParticipant) *state.RemoteParticipant {
	sp := &state.RemoteParticipant{
		ID:           p.ID(),
		DisplayName:  p.DisplayName(),
		State:        p.State(),
		IsMuted:      p.IsMuted(),
		IsSpeaking:   p.IsSpeaking(),
		VideoStreams: make(map[int]state.RemoteVideoStream),
	}
	for _, s := range p.VideoStreams() {
		sp.VideoStreams[s.ID()] = convertRemoteStream(s)
	}
	return sp
}

func convertRemoteStream(s calling.RemoteVideoStream) state.RemoteVideoStream {
	return state.RemoteVideoStream{
		ID:          s.ID(),
		Type:        s.Type(),
		IsAvailable: s.IsAvailable(),
	}
}

func convertLocalStreams(streams []calling.LocalVideoStream) []state.LocalVideoStream {
	if len(streams) == 0 {
		return nil
	}
	out := make([]state.LocalVideoStream, 0, len(streams))
	for _, s := range streams {
		out = append(out, state.LocalVideoStream{
			Source: s.Source(),
			Type:   s.Type(),
		})
	}
	return out
}
