package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"

	"github.com/bbielsa/callsync/internal/calling"
)

// rendererProvider builds renderers for the stream types this SDK produces.
type rendererProvider struct{}

func (rendererProvider) NewRenderer(stream calling.VideoStream) (calling.VideoStreamRenderer, error) {
	switch s := stream.(type) {
	case *remoteStream:
		return &remoteRenderer{stream: s}, nil
	case *LocalStream:
		return &localRenderer{stream: s}, nil
	default:
		return nil, fmt.Errorf("webrtc: unsupported stream type %T", stream)
	}
}

// rendererView is one rendered view handle.
type rendererView struct {
	id   string
	opts calling.ViewOptions
}

func (v *rendererView) ID() string                       { return v.id }
func (v *rendererView) ScalingMode() calling.ScalingMode { return v.opts.ScalingMode }
func (v *rendererView) IsMirrored() bool                 { return v.opts.IsMirrored }

// remoteRenderer renders an inbound track by depacketizing its RTP payloads
// into an H264 elementary stream written to the view's sink.
type remoteRenderer struct {
	stream *remoteStream

	mu       sync.Mutex
	stop     chan struct{}
	disposed bool
}

func (r *remoteRenderer) CreateView(ctx context.Context, opts calling.ViewOptions) (calling.VideoStreamRendererView, error) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil, errors.New("webrtc: renderer disposed")
	}
	if r.stop == nil {
		r.stop = make(chan struct{})
	}
	stop := r.stop
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := &rendererView{id: uuid.NewString(), opts: opts}
	if opts.Sink != nil {
		go pumpVideo(r.stream.track, opts.Sink, stop)
	}
	return v, nil
}

// Dispose stops every pump this renderer started. Safe to call once per
// renderer; the view lifecycle guarantees no second call.
func (r *remoteRenderer) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	stop := r.stop
	r.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

// pumpVideo reads RTP from the track and writes annex-B NAL units to w until
// the renderer is disposed or the track ends.
func pumpVideo(track *pion.TrackRemote, w io.Writer, stop <-chan struct{}) {
	log.Printf("[webrtc] rendering H264 video track")

	startCode := []byte{0x00, 0x00, 0x00, 0x01}
	depack := newH264Depacketizer()

	for {
		select {
		case <-stop:
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Printf("[webrtc] video track read error: %v", err)
			return
		}

		for _, nalu := range depack.depacketize(pkt.Payload) {
			if len(nalu) == 0 {
				continue
			}
			w.Write(startCode)
			w.Write(nalu)
		}
	}
}

// localRenderer tracks view lifecycle for a local stream. There is no local
// capture pipeline, so views carry no media.
type localRenderer struct {
	stream *LocalStream

	mu       sync.Mutex
	disposed bool
}

func (r *localRenderer) CreateView(ctx context.Context, opts calling.ViewOptions) (calling.VideoStreamRendererView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return nil, errors.New("webrtc: renderer disposed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &rendererView{id: uuid.NewString(), opts: opts}, nil
}

func (r *localRenderer) Dispose() {
	r.mu.Lock()
	r.disposed = true
	r.mu.Unlock()
}
