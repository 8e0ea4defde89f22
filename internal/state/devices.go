package state

import "github.com/bbielsa/callsync/internal/calling"

// SetCameras replaces the known camera list.
func (s *Store) SetCameras(cameras []calling.VideoDeviceInfo) {
	s.modify(func(draft *Snapshot) {
		draft.DeviceManager.Cameras = cameras
	})
}

// SetMicrophones replaces the known microphone list.
func (s *Store) SetMicrophones(microphones []calling.AudioDeviceInfo) {
	s.modify(func(draft *Snapshot) {
		draft.DeviceManager.Microphones = microphones
	})
}

// SetSpeakers replaces the known speaker list.
func (s *Store) SetSpeakers(speakers []calling.AudioDeviceInfo) {
	s.modify(func(draft *Snapshot) {
		draft.DeviceManager.Speakers = speakers
	})
}

// SetSelectedMicrophone records the active microphone; nil clears it.
func (s *Store) SetSelectedMicrophone(d *calling.AudioDeviceInfo) {
	s.modify(func(draft *Snapshot) {
		draft.DeviceManager.SelectedMicrophone = d
	})
}

// SetSelectedSpeaker records the active speaker; nil clears it.
func (s *Store) SetSelectedSpeaker(d *calling.AudioDeviceInfo) {
	s.modify(func(draft *Snapshot) {
		draft.DeviceManager.SelectedSpeaker = d
	})
}

// SetDeviceAccess records the permissions granted by the user.
func (s *Store) SetDeviceAccess(access calling.DeviceAccess) {
	s.modify(func(draft *Snapshot) {
		draft.DeviceManager.DeviceAccess = access
	})
}
