package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"

	"github.com/bbielsa/callsync/internal/api"
	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/config"
	"github.com/bbielsa/callsync/internal/state"
	"github.com/bbielsa/callsync/internal/stateful"
	"github.com/bbielsa/callsync/internal/webrtc"
)

const helpText = `callsync - Place and receive WebRTC calls with a synced client state

Usage:
  callsync [options]

Remote H264 video is written to stdout. Pipe to ffplay or ffmpeg for
playback or recording.

Environment Variables:
  CALLSYNC_TOKEN         JWT authentication token (required)
  CALLSYNC_USER          User ID for signaling (required)
  CALLSYNC_API_URL       Call service base URL (required)
  CALLSYNC_DISPLAY_NAME  Display name shown to remote parties
  CALLSYNC_CALLEE        Peer ID to call on startup
  CALLSYNC_GROUP         Group ID to join on startup

With neither CALLSYNC_CALLEE nor CALLSYNC_GROUP set, the client waits and
auto-answers the first incoming call.

Examples:
  # Call a peer and play their video
  CALLSYNC_CALLEE=peer-1 callsync | ffplay -f h264 -

  # Wait for a call and record the video
  callsync | ffmpeg -f h264 -i - -c copy output.mp4

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	// Step 1: Fetch ticket
	apiClient := api.NewClient(cfg.APIBaseURL)
	log.Printf("[main] getting signaling ticket for %s", cfg.UserID)
	ticket, err := apiClient.FetchTicket(cfg.Token, cfg.UserID)
	if err != nil {
		log.Fatalf("[main] get ticket: %v", err)
	}
	log.Printf("[main] ticket obtained: id=%s signal=%s", ticket.ID, ticket.SignalServer)

	// Step 2: Build the SDK client
	sdk, err := webrtc.NewClient(ticket, cfg.UserID)
	if err != nil {
		log.Fatalf("[main] create sdk client: %v", err)
	}

	// Step 3: Wrap it in the stateful client
	client := stateful.NewClient(sdk, stateful.Options{
		UserID:      cfg.UserID,
		DisplayName: cfg.DisplayName,
		Chat:        sdk.Chat(),
	})

	var (
		callMu     sync.Mutex
		activeCall *stateful.Call
	)
	setCall := func(c *stateful.Call) {
		callMu.Lock()
		activeCall = c
		callMu.Unlock()
	}
	getCall := func() *stateful.Call {
		callMu.Lock()
		defer callMu.Unlock()
		return activeCall
	}

	// Step 4: React to snapshots. The handler only coalesces a trigger; view
	// creation and call acceptance run outside the notification path.
	events := make(chan struct{}, 1)
	client.OnStateChange(func(s *state.Snapshot) {
		select {
		case events <- struct{}{}:
		default:
		}
	})

	// Step 5: Create the call agent (connects signaling)
	agent, err := client.CreateCallAgent(ctx, cfg.DisplayName)
	if err != nil {
		log.Fatalf("[main] create call agent: %v", err)
	}

	// Step 6: Place or join a call, or wait for one
	switch {
	case cfg.Callee != "":
		log.Printf("[main] calling %s", cfg.Callee)
		call, err := agent.StartCall(ctx, []string{cfg.Callee})
		if err != nil {
			log.Fatalf("[main] start call: %v", err)
		}
		setCall(call)
	case cfg.GroupID != "":
		log.Printf("[main] joining group %s", cfg.GroupID)
		call, err := agent.Join(ctx, cfg.GroupID)
		if err != nil {
			log.Fatalf("[main] join group: %v", err)
		}
		setCall(call)
	default:
		log.Printf("[main] waiting for an incoming call")
	}

	go func() {
		hadCall := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-events:
			}

			snap := client.State()
			logSnapshot(snap)

			if getCall() == nil {
				for id := range snap.IncomingCalls {
					log.Printf("[main] answering incoming call %s", id)
					call, err := agent.AcceptCall(ctx, id)
					if err != nil {
						log.Printf("[main] accept call: %v", err)
						continue
					}
					setCall(call)
					break
				}
			}

			call := getCall()
			if call == nil {
				continue
			}

			if _, ok := snap.Calls[call.ID()]; ok {
				hadCall = true
				ensureViews(ctx, client, call)
			} else if hadCall {
				log.Printf("[main] call ended")
				cancel()
				return
			}
		}
	}()

	<-ctx.Done()
	log.Printf("[main] shutting down")

	if call := getCall(); call != nil {
		if err := call.HangUp(context.Background()); err != nil {
			log.Printf("[main] hang up: %v", err)
		}
	}
	client.DisposeAllViews()
	if err := agent.Dispose(); err != nil {
		log.Printf("[main] dispose agent: %v", err)
	}
	if err := client.Dispose(); err != nil {
		log.Printf("[main] dispose client: %v", err)
	}

	log.Printf("[main] done")
}

// ensureViews creates a view for every available remote stream on the call.
// Streams already rendering or rendered are skipped by the view lifecycle, so
// repeat invocations are cheap.
func ensureViews(ctx context.Context, client *stateful.Client, call *stateful.Call) {
	for _, p := range call.RemoteParticipants() {
		for _, s := range p.VideoStreams() {
			if !s.IsAvailable() {
				continue
			}
			opts := calling.ViewOptions{
				ScalingMode: calling.ScalingModeFit,
				Sink:        os.Stdout,
			}
			if _, err := client.CreateView(ctx, call.ID(), p.ID(), s, opts); err != nil {
				log.Printf("[main] create view: %v", err)
			}
		}
	}
}

func logSnapshot(s *state.Snapshot) {
	for _, call := range s.Calls {
		log.Printf("[main] call %s: state=%s muted=%v participants=%d",
			call.ID, call.State, call.IsMuted, len(call.RemoteParticipants))
	}
	for op, opErr := range s.LatestErrors {
		log.Printf("[main] last error for %s: %v", op, opErr.Err)
	}
}
