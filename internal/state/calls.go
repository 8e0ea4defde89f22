package state

import (
	"time"

	"github.com/bbielsa/callsync/internal/calling"
)

// SetCall upserts a call. Ownership of c transfers to the store; the caller
// must not mutate it afterwards.
func (s *Store) SetCall(c *Call) {
	s.modify(func(draft *Snapshot) {
		draft.Calls[c.ID] = c
	})
}

// SetCallEnded moves a call out of the active set into the bounded ended
// history. No-op when the call is not tracked.
func (s *Store) SetCallEnded(callID string) {
	s.modify(func(draft *Snapshot) {
		c := draft.mutableCall(callID)
		if c == nil {
			return
		}
		delete(draft.Calls, callID)
		c.State = calling.CallStateDisconnected
		c.EndTime = time.Now()
		draft.CallsEnded = append(draft.CallsEnded, c)
		if len(draft.CallsEnded) > maxEndedCalls {
			draft.CallsEnded = draft.CallsEnded[len(draft.CallsEnded)-maxEndedCalls:]
		}
	})
}

// SetCallState records a call state transition.
func (s *Store) SetCallState(callID string, st calling.CallState) {
	s.modify(func(draft *Snapshot) {
		if c := draft.mutableCall(callID); c != nil {
			c.State = st
		}
	})
}

// SetCallIsMuted records the local mute flag of a call.
func (s *Store) SetCallIsMuted(callID string, muted bool) {
	s.modify(func(draft *Snapshot) {
		if c := draft.mutableCall(callID); c != nil {
			c.IsMuted = muted
		}
	})
}

// SetCallRecordingActive records whether the call is being recorded.
func (s *Store) SetCallRecordingActive(callID string, active bool) {
	s.modify(func(draft *Snapshot) {
		if c := draft.mutableCall(callID); c != nil {
			c.IsRecordingActive = active
		}
	})
}

// SetCallTranscriptionActive records whether the call is being transcribed.
func (s *Store) SetCallTranscriptionActive(callID string, active bool) {
	s.modify(func(draft *Snapshot) {
		if c := draft.mutableCall(callID); c != nil {
			c.IsTranscriptionActive = active
		}
	})
}

// SetParticipant upserts a remote participant on a call. Ownership of p
// transfers to the store.
func (s *Store) SetParticipant(callID string, p *RemoteParticipant) {
	s.modify(func(draft *Snapshot) {
		if c := draft.mutableCall(callID); c != nil {
			c.RemoteParticipants[p.ID] = p
		}
	})
}

// RemoveParticipant drops a remote participant from a call.
func (s *Store) RemoveParticipant(callID, participantID string) {
	s.modify(func(draft *Snapshot) {
		if c := draft.mutableCall(callID); c != nil {
			delete(c.RemoteParticipants, participantID)
		}
	})
}

// SetParticipantState records a participant state transition.
func (s *Store) SetParticipantState(callID, participantID string, st calling.ParticipantState) {
	s.modify(func(draft *Snapshot) {
		if p := draft.mutableParticipant(callID, participantID); p != nil {
			p.State = st
		}
	})
}

// SetParticipantIsMuted records a participant's mute flag.
func (s *Store) SetParticipantIsMuted(callID, participantID string, muted bool) {
	s.modify(func(draft *Snapshot) {
		if p := draft.mutableParticipant(callID, participantID); p != nil {
			p.IsMuted = muted
		}
	})
}

// SetParticipantIsSpeaking records a participant's speaking flag.
func (s *Store) SetParticipantIsSpeaking(callID, participantID string, speaking bool) {
	s.modify(func(draft *Snapshot) {
		if p := draft.mutableParticipant(callID, participantID); p != nil {
			p.IsSpeaking = speaking
		}
	})
}

// SetParticipantDisplayName records a participant's display name.
func (s *Store) SetParticipantDisplayName(callID, participantID, name string) {
	s.modify(func(draft *Snapshot) {
		if p := draft.mutableParticipant(callID, participantID); p != nil {
			p.DisplayName = name
		}
	})
}

// SetRemoteVideoStream upserts a remote video stream on a participant. Any
// existing rendered view for the same stream ID is preserved.
func (s *Store) SetRemoteVideoStream(callID, participantID string, rs RemoteVideoStream) {
	s.modify(func(draft *Snapshot) {
		p := draft.mutableParticipant(callID, participantID)
		if p == nil {
			return
		}
		if prev, ok := p.VideoStreams[rs.ID]; ok && rs.View == nil {
			rs.View = prev.View
		}
		p.VideoStreams[rs.ID] = rs
	})
}

// RemoveRemoteVideoStream drops a remote video stream from a participant.
func (s *Store) RemoveRemoteVideoStream(callID, participantID string, streamID int) {
	s.modify(func(draft *Snapshot) {
		if p := draft.mutableParticipant(callID, participantID); p != nil {
			delete(p.VideoStreams, streamID)
		}
	})
}

// SetRemoteVideoStreamAvailability flips a stream's availability flag.
func (s *Store) SetRemoteVideoStreamAvailability(callID, participantID string, streamID int, available bool) {
	s.modify(func(draft *Snapshot) {
		p := draft.mutableParticipant(callID, participantID)
		if p == nil {
			return
		}
		rs, ok := p.VideoStreams[streamID]
		if !ok {
			return
		}
		rs.IsAvailable = available
		p.VideoStreams[streamID] = rs
	})
}

// SetLocalVideoStreams replaces a call's local stream list. Views already
// attached to a stream with the same source device carry over.
func (s *Store) SetLocalVideoStreams(callID string, streams []LocalVideoStream) {
	s.modify(func(draft *Snapshot) {
		c := draft.mutableCall(callID)
		if c == nil {
			return
		}
		for i, next := range streams {
			for _, prev := range c.LocalVideoStreams {
				if prev.Source.ID == next.Source.ID && next.View == nil {
					streams[i].View = prev.View
				}
			}
		}
		c.LocalVideoStreams = streams
	})
}

// SetRemoteVideoStreamView attaches (or, with nil, clears) the rendered view
// of a remote stream. Silently no-ops when the call, participant, or stream
// has left the snapshot; by the time an async render resolves the target may
// be gone.
func (s *Store) SetRemoteVideoStreamView(callID, participantID string, streamID int, view *VideoStreamRendererView) {
	s.modify(func(draft *Snapshot) {
		p := draft.mutableParticipant(callID, participantID)
		if p == nil {
			return
		}
		rs, ok := p.VideoStreams[streamID]
		if !ok {
			return
		}
		rs.View = view
		p.VideoStreams[streamID] = rs
	})
}

// SetLocalVideoStreamView attaches (or clears) the rendered view of a call's
// local stream. Silently no-ops when the call has no local stream.
func (s *Store) SetLocalVideoStreamView(callID string, view *VideoStreamRendererView) {
	s.modify(func(draft *Snapshot) {
		c := draft.mutableCall(callID)
		if c == nil || len(c.LocalVideoStreams) == 0 {
			return
		}
		c.LocalVideoStreams[0].View = view
	})
}

// SetUnparentedView records a rendered view for a local stream outside any
// call, keyed by its source device.
func (s *Store) SetUnparentedView(source calling.VideoDeviceInfo, streamType calling.MediaStreamType, view *VideoStreamRendererView) {
	s.modify(func(draft *Snapshot) {
		draft.DeviceManager.UnparentedViews[source.ID] = LocalVideoStream{
			Source: source,
			Type:   streamType,
			View:   view,
		}
	})
}

// DeleteUnparentedView drops the view entry for an unparented stream.
func (s *Store) DeleteUnparentedView(sourceID string) {
	s.modify(func(draft *Snapshot) {
		delete(draft.DeviceManager.UnparentedViews, sourceID)
	})
}

// SetIncomingCall upserts a ringing call.
func (s *Store) SetIncomingCall(ic *IncomingCall) {
	s.modify(func(draft *Snapshot) {
		draft.IncomingCalls[ic.ID] = ic
	})
}

// RemoveIncomingCall drops a ringing call once answered or rejected.
func (s *Store) RemoveIncomingCall(id string) {
	s.modify(func(draft *Snapshot) {
		delete(draft.IncomingCalls, id)
	})
}
