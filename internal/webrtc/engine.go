package webrtc

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	pion "github.com/pion/webrtc/v4"

	"github.com/bbielsa/callsync/internal/api"
)

// newEngine builds the shared Pion API with minimal codec registration and a
// NACK responder, plus the peer connection configuration derived from the
// ticket's ICE servers.
func newEngine(iceServers []api.ICEServer) (*pion.API, pion.Configuration, error) {
	m := &pion.MediaEngine{}

	h264Codec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeH264,
			ClockRate:   90000,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=0;profile-level-id=64001f",
		},
		PayloadType: 121,
	}
	if err := m.RegisterCodec(h264Codec, pion.RTPCodecTypeVideo); err != nil {
		return nil, pion.Configuration{}, fmt.Errorf("register H264: %w", err)
	}

	pcmuCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypePCMU,
			ClockRate: 8000,
			Channels:  1,
		},
		PayloadType: 0,
	}
	if err := m.RegisterCodec(pcmuCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, pion.Configuration{}, fmt.Errorf("register PCMU: %w", err)
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, pion.Configuration{}, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)

	webrtcAPI := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	var servers []pion.ICEServer
	for _, s := range iceServers {
		servers = append(servers, pion.ICEServer{
			URLs:       []string{s.URL},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	cfg := pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	}

	return webrtcAPI, cfg, nil
}
