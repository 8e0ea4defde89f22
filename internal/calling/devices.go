package calling

import "context"

// VideoDeviceInfo describes a camera.
type VideoDeviceInfo struct {
	ID          string
	Name        string
	FacingFront bool
}

// AudioDeviceInfo describes a microphone or speaker.
type AudioDeviceInfo struct {
	ID              string
	Name            string
	IsSystemDefault bool
}

// DeviceAccess reports the permissions granted by the user.
type DeviceAccess struct {
	Audio bool
	Video bool
}

// DeviceManager enumerates and selects capture/playback devices. The SDK
// exposes exactly one device manager per client.
type DeviceManager interface {
	Cameras(ctx context.Context) ([]VideoDeviceInfo, error)
	Microphones(ctx context.Context) ([]AudioDeviceInfo, error)
	Speakers(ctx context.Context) ([]AudioDeviceInfo, error)
	SelectedMicrophone() (AudioDeviceInfo, bool)
	SelectedSpeaker() (AudioDeviceInfo, bool)
	SelectMicrophone(ctx context.Context, d AudioDeviceInfo) error
	SelectSpeaker(ctx context.Context, d AudioDeviceInfo) error
	AskDevicePermission(ctx context.Context, audio, video bool) (DeviceAccess, error)
	Subscribe(h DeviceHandler) (unsubscribe func())
}

// DeviceHandler receives device change events.
type DeviceHandler interface {
	OnCamerasUpdated(cameras []VideoDeviceInfo)
	OnAudioDevicesUpdated(microphones, speakers []AudioDeviceInfo)
	OnSelectedMicrophoneChanged(d AudioDeviceInfo)
	OnSelectedSpeakerChanged(d AudioDeviceInfo)
}
