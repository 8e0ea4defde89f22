package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbielsa/callsync/internal/calling"
)

func TestRegistryRemotePrunesEmptyParents(t *testing.T) {
	r := NewRegistry()
	s1 := &fakeRemoteStream{id: 1}
	s2 := &fakeRemoteStream{id: 2}

	r.SetRemote("call-1", "peer-1", 1, s1, NotRendered, nil)
	r.SetRemote("call-1", "peer-1", 2, s2, NotRendered, nil)

	r.DeleteRemote("call-1", "peer-1", 1)
	_, ok := r.Remote("call-1", "peer-1", 2)
	require.True(t, ok)

	r.DeleteRemote("call-1", "peer-1", 2)
	_, ok = r.Remote("call-1", "peer-1", 2)
	require.False(t, ok)
	require.Empty(t, r.CallIDs())
}

func TestRegistryRemoteKeysForCall(t *testing.T) {
	r := NewRegistry()
	r.SetRemote("call-1", "peer-1", 1, &fakeRemoteStream{id: 1}, NotRendered, nil)
	r.SetRemote("call-1", "peer-1", 2, &fakeRemoteStream{id: 2}, NotRendered, nil)
	r.SetRemote("call-1", "peer-2", 5, &fakeRemoteStream{id: 5}, NotRendered, nil)
	r.SetRemote("call-2", "peer-3", 1, &fakeRemoteStream{id: 1}, NotRendered, nil)

	keys := r.RemoteKeysForCall("call-1")
	require.Len(t, keys, 2)
	require.ElementsMatch(t, []int{1, 2}, keys["peer-1"])
	require.Equal(t, []int{5}, keys["peer-2"])
}

func TestRegistryCallIDsCoverLocalAndRemote(t *testing.T) {
	r := NewRegistry()
	r.SetLocal("call-1", &fakeLocalStream{}, NotRendered, nil)
	r.SetRemote("call-2", "peer-1", 1, &fakeRemoteStream{id: 1}, NotRendered, nil)
	r.SetRemote("call-1", "peer-2", 1, &fakeRemoteStream{id: 1}, NotRendered, nil)

	require.ElementsMatch(t, []string{"call-1", "call-2"}, r.CallIDs())

	r.DeleteCall("call-1")
	require.Equal(t, []string{"call-2"}, r.CallIDs())
}

func TestRegistryUnparentedKeyedByHandle(t *testing.T) {
	r := NewRegistry()
	cam := calling.VideoDeviceInfo{ID: "cam-1"}

	// Two distinct handles over the same device are separate entries.
	a := &fakeLocalStream{source: cam}
	b := &fakeLocalStream{source: cam}
	r.SetUnparented(a, Rendering, nil)
	r.SetUnparented(b, Rendered, nil)

	infoA, ok := r.Unparented(a)
	require.True(t, ok)
	require.Equal(t, Rendering, infoA.Status)

	infoB, ok := r.Unparented(b)
	require.True(t, ok)
	require.Equal(t, Rendered, infoB.Status)

	require.ElementsMatch(t, []calling.LocalVideoStream{a, b}, r.UnparentedStreams())

	r.DeleteUnparented(a)
	_, ok = r.Unparented(a)
	require.False(t, ok)
	_, ok = r.Unparented(b)
	require.True(t, ok)
}
