package calling

// CallState is the coarse lifecycle state of a call as reported by the SDK.
type CallState int

const (
	CallStateNone CallState = iota
	CallStateConnecting
	CallStateRinging
	CallStateConnected
	CallStateLocalHold
	CallStateRemoteHold
	CallStateDisconnecting
	CallStateDisconnected
)

func (s CallState) String() string {
	switch s {
	case CallStateNone:
		return "None"
	case CallStateConnecting:
		return "Connecting"
	case CallStateRinging:
		return "Ringing"
	case CallStateConnected:
		return "Connected"
	case CallStateLocalHold:
		return "LocalHold"
	case CallStateRemoteHold:
		return "RemoteHold"
	case CallStateDisconnecting:
		return "Disconnecting"
	case CallStateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// ParticipantState is the connection state of a remote participant.
type ParticipantState int

const (
	ParticipantStateIdle ParticipantState = iota
	ParticipantStateConnecting
	ParticipantStateRinging
	ParticipantStateConnected
	ParticipantStateHold
	ParticipantStateDisconnected
)

func (s ParticipantState) String() string {
	switch s {
	case ParticipantStateIdle:
		return "Idle"
	case ParticipantStateConnecting:
		return "Connecting"
	case ParticipantStateRinging:
		return "Ringing"
	case ParticipantStateConnected:
		return "Connected"
	case ParticipantStateHold:
		return "Hold"
	case ParticipantStateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// MediaStreamType distinguishes camera video from screen sharing.
type MediaStreamType int

const (
	MediaStreamTypeVideo MediaStreamType = iota
	MediaStreamTypeScreenSharing
)

func (t MediaStreamType) String() string {
	if t == MediaStreamTypeScreenSharing {
		return "ScreenSharing"
	}
	return "Video"
}

// ScalingMode controls how a rendered view fits its target surface.
type ScalingMode int

const (
	ScalingModeStretch ScalingMode = iota
	ScalingModeCrop
	ScalingModeFit
)
