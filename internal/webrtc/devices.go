package webrtc

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/bbielsa/callsync/internal/calling"
)

// deviceManager is the device singleton. Without an OS capture layer the
// device set is a static default inventory; selection and permission state
// are still tracked and reported through events.
type deviceManager struct {
	subs subscribers[calling.DeviceHandler]

	mu              sync.Mutex
	cameras         []calling.VideoDeviceInfo
	microphones     []calling.AudioDeviceInfo
	speakers        []calling.AudioDeviceInfo
	selectedMic     *calling.AudioDeviceInfo
	selectedSpeaker *calling.AudioDeviceInfo
	access          calling.DeviceAccess
}

func newDeviceManager() *deviceManager {
	return &deviceManager{
		cameras: []calling.VideoDeviceInfo{
			{ID: "camera-front", Name: "Front Camera", FacingFront: true},
			{ID: "camera-back", Name: "Back Camera"},
		},
		microphones: []calling.AudioDeviceInfo{
			{ID: "mic-default", Name: "Default Microphone", IsSystemDefault: true},
		},
		speakers: []calling.AudioDeviceInfo{
			{ID: "speaker-default", Name: "Default Speaker", IsSystemDefault: true},
		},
	}
}

func (d *deviceManager) Cameras(ctx context.Context) ([]calling.VideoDeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.cameras), nil
}

func (d *deviceManager) Microphones(ctx context.Context) ([]calling.AudioDeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.microphones), nil
}

func (d *deviceManager) Speakers(ctx context.Context) ([]calling.AudioDeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.speakers), nil
}

func (d *deviceManager) SelectedMicrophone() (calling.AudioDeviceInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selectedMic == nil {
		return calling.AudioDeviceInfo{}, false
	}
	return *d.selectedMic, true
}

func (d *deviceManager) SelectedSpeaker() (calling.AudioDeviceInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selectedSpeaker == nil {
		return calling.AudioDeviceInfo{}, false
	}
	return *d.selectedSpeaker, true
}

func (d *deviceManager) SelectMicrophone(ctx context.Context, device calling.AudioDeviceInfo) error {
	d.mu.Lock()
	if !containsAudioDevice(d.microphones, device.ID) {
		d.mu.Unlock()
		return errors.New("webrtc: unknown microphone")
	}
	d.selectedMic = &device
	d.mu.Unlock()

	d.subs.each(func(h calling.DeviceHandler) { h.OnSelectedMicrophoneChanged(device) })
	return nil
}

func (d *deviceManager) SelectSpeaker(ctx context.Context, device calling.AudioDeviceInfo) error {
	d.mu.Lock()
	if !containsAudioDevice(d.speakers, device.ID) {
		d.mu.Unlock()
		return errors.New("webrtc: unknown speaker")
	}
	d.selectedSpeaker = &device
	d.mu.Unlock()

	d.subs.each(func(h calling.DeviceHandler) { h.OnSelectedSpeakerChanged(device) })
	return nil
}

// AskDevicePermission grants the requested access. There is no OS permission
// prompt to defer to.
func (d *deviceManager) AskDevicePermission(ctx context.Context, audio, video bool) (calling.DeviceAccess, error) {
	d.mu.Lock()
	if audio {
		d.access.Audio = true
	}
	if video {
		d.access.Video = true
	}
	access := d.access
	d.mu.Unlock()
	return access, nil
}

func (d *deviceManager) Subscribe(h calling.DeviceHandler) func() {
	return d.subs.add(h)
}

func containsAudioDevice(devices []calling.AudioDeviceInfo, id string) bool {
	for _, dev := range devices {
		if dev.ID == id {
			return true
		}
	}
	return false
}
