package stateful

import (
	"context"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/state"
)

// DeviceManager is the stateful wrapper around the SDK device manager.
// Enumeration results and selections are mirrored into the snapshot.
type DeviceManager struct {
	inner calling.DeviceManager
	store *state.Store
}

// Cameras enumerates cameras and records them in the snapshot.
func (d *DeviceManager) Cameras(ctx context.Context) ([]calling.VideoDeviceInfo, error) {
	cameras, err := d.inner.Cameras(ctx)
	if err != nil {
		return nil, d.store.TeeErrorToState("DeviceManager.getCameras", err)
	}
	d.store.SetCameras(cameras)
	return cameras, nil
}

// Microphones enumerates microphones and records them in the snapshot.
func (d *DeviceManager) Microphones(ctx context.Context) ([]calling.AudioDeviceInfo, error) {
	mics, err := d.inner.Microphones(ctx)
	if err != nil {
		return nil, d.store.TeeErrorToState("DeviceManager.getMicrophones", err)
	}
	d.store.SetMicrophones(mics)
	return mics, nil
}

// Speakers enumerates speakers and records them in the snapshot.
func (d *DeviceManager) Speakers(ctx context.Context) ([]calling.AudioDeviceInfo, error) {
	speakers, err := d.inner.Speakers(ctx)
	if err != nil {
		return nil, d.store.TeeErrorToState("DeviceManager.getSpeakers", err)
	}
	d.store.SetSpeakers(speakers)
	return speakers, nil
}

// SelectMicrophone switches the active microphone.
func (d *DeviceManager) SelectMicrophone(ctx context.Context, dev calling.AudioDeviceInfo) error {
	if err := d.inner.SelectMicrophone(ctx, dev); err != nil {
		return d.store.TeeErrorToState("DeviceManager.selectMicrophone", err)
	}
	d.store.SetSelectedMicrophone(&dev)
	return nil
}

// SelectSpeaker switches the active speaker.
func (d *DeviceManager) SelectSpeaker(ctx context.Context, dev calling.AudioDeviceInfo) error {
	if err := d.inner.SelectSpeaker(ctx, dev); err != nil {
		return d.store.TeeErrorToState("DeviceManager.selectSpeaker", err)
	}
	d.store.SetSelectedSpeaker(&dev)
	return nil
}

// AskDevicePermission requests capture permissions and records the outcome.
func (d *DeviceManager) AskDevicePermission(ctx context.Context, audio, video bool) (calling.DeviceAccess, error) {
	access, err := d.inner.AskDevicePermission(ctx, audio, video)
	if err != nil {
		return access, d.store.TeeErrorToState("DeviceManager.askDevicePermission", err)
	}
	d.store.SetDeviceAccess(access)
	return access, nil
}

// deviceSubscriber mirrors unsolicited device change events.
type deviceSubscriber struct {
	store *state.Store
}

func (ds *deviceSubscriber) OnCamerasUpdated(cameras []calling.VideoDeviceInfo) {
	ds.store.SetCameras(cameras)
}

func (ds *deviceSubscriber) OnAudioDevicesUpdated(microphones, speakers []calling.AudioDeviceInfo) {
	ds.store.SetMicrophones(microphones)
	ds.store.SetSpeakers(speakers)
}

func (ds *deviceSubscriber) OnSelectedMicrophoneChanged(dev calling.AudioDeviceInfo) {
	ds.store.SetSelectedMicrophone(&dev)
}

func (ds *deviceSubscriber) OnSelectedSpeakerChanged(dev calling.AudioDeviceInfo) {
	ds.store.SetSelectedSpeaker(&dev)
}
