package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sightpath/go-sightpath/internal/config"
	applog "github.com/sightpath/go-sightpath/internal/log"
	"github.com/sightpath/go-sightpath/pkg/camera"
	"github.com/sightpath/go-sightpath/pkg/detect"
	"github.com/sightpath/go-sightpath/pkg/fusion"
	"github.com/sightpath/go-sightpath/pkg/nav"
	"github.com/sightpath/go-sightpath/pkg/overlay"
	"github.com/sightpath/go-sightpath/pkg/record"
	"github.com/sightpath/go-sightpath/pkg/session"
	"github.com/sightpath/go-sightpath/pkg/speech"
	"github.com/sightpath/go-sightpath/pkg/voiceclone"
)

func main() {
	gatewayURL := flag.String("gateway", config.GatewayURL(), "Gateway base URL")
	signalURL := flag.String("signal", "", "WebRTC signalling server URL (empty disables camera)")
	modelPath := flag.String("model", detect.DefaultYOLOConfig().ModelPath, "Local YOLO ONNX model path")
	policyName := flag.String("policy", config.FusionPolicy(), "Detection policy: local-first, server-first, parallel")
	fps := flag.Int("fps", config.FPS(), "Detection rate in frames per second")
	positionURL := flag.String("position", "", "Companion position endpoint (empty pins to -lat/-lng)")
	lat := flag.Float64("lat", 0, "Fixed latitude when no position endpoint is set")
	lng := flag.Float64("lng", 0, "Fixed longitude when no position endpoint is set")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	applog.Init(*logLevel)

	policy, err := fusion.ParsePolicy(*policyName)
	if err != nil {
		log.Fatalf("Invalid policy: %v", err)
	}

	fmt.Println("👁  SightPath Assist")
	fmt.Printf("   Gateway: %s\n", *gatewayURL)
	fmt.Printf("   Policy:  %s @ %d fps\n", policy, *fps)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		cancel()
	}()

	// Camera: live WebRTC feed when a signalling server is given,
	// otherwise a static source that stays empty until frames arrive
	// by other means.
	var frames camera.Source
	if *signalURL != "" {
		cam := camera.NewWebRTC(*signalURL)
		if err := cam.Connect(ctx); err != nil {
			log.Fatalf("Camera connect failed: %v", err)
		}
		defer cam.Close()
		frames = cam
		fmt.Println("📷 Camera connected")
	} else {
		frames = camera.NewStatic()
		fmt.Println("📷 No camera configured; detection will idle")
	}

	// Local detector is optional: without the model file the engine
	// still runs the configured policy against the gateway alone.
	var local detect.Detector
	if yolo, err := detect.NewYOLO(detect.YOLOConfig{
		ModelPath:        *modelPath,
		ConfidenceThresh: detect.DefaultYOLOConfig().ConfidenceThresh,
		NMSThresh:        detect.DefaultYOLOConfig().NMSThresh,
		InputWidth:       detect.DefaultYOLOConfig().InputWidth,
		InputHeight:      detect.DefaultYOLOConfig().InputHeight,
	}); err == nil {
		local = yolo
		defer yolo.Close()
		fmt.Println("🧠 Local detector loaded")
	} else {
		fmt.Printf("🧠 Local detector unavailable (%v); using gateway only\n", err)
	}
	remote := detect.NewRemote(*gatewayURL)
	engine := fusion.New(local, remote, policy)

	// Speech: synthesis through the gateway, playback through the
	// local audio command.
	speechClient := speech.NewClient(*gatewayURL)
	queue := speech.NewQueue(speechClient, speech.NewCommandSink())
	go queue.Run(ctx)

	// Navigation: press-to-talk destination capture plus advancement
	// against the position source.
	var position nav.PositionSource
	if *positionURL != "" {
		position = nav.NewHTTPPosition(*positionURL)
	} else {
		position = nav.StaticPosition{Pos: nav.Coordinate{Lat: *lat, Lng: *lng}}
	}
	guard := record.NewGuard(record.NewCommandRecorder())
	navigator := nav.New(
		guard,
		speechClient,
		nav.NewRouteClient(*gatewayURL),
		position,
		nav.SpeakerFunc(func(text string) {
			queue.Enqueue(text, config.VoiceID())
		}),
	)

	cloneClient := voiceclone.NewClient(*gatewayURL)
	cloneRecorder := voiceclone.NewRecorder(guard, cloneClient, cloneClient)

	publisher := overlay.NewWSPublisher(overlayURL(*gatewayURL))
	defer publisher.Close()

	pipeline := session.New(frames, engine, queue, publisher,
		session.WithFPS(*fps),
		session.WithVoiceID(config.VoiceID()),
		session.WithNavState(navigator),
	)

	fmt.Println("Commands: start, stop, nav, clone, quit")
	runConsole(ctx, cancel, pipeline, navigator, cloneRecorder)
	fmt.Println("👋 Goodbye!")
}

// runConsole reads commands from stdin until quit or shutdown.
func runConsole(ctx context.Context, cancel context.CancelFunc, pipeline *session.Pipeline, navigator *nav.Navigator, cloner *voiceclone.Recorder) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(strings.ToLower(scanner.Text()))
		}
		close(lines)
	}()

	cloning := false
	for {
		select {
		case <-ctx.Done():
			pipeline.Stop()
			return
		case line, ok := <-lines:
			if !ok {
				pipeline.Stop()
				return
			}
			switch line {
			case "start":
				if err := pipeline.Start(ctx); err != nil {
					fmt.Printf("⚠️  %v\n", err)
				} else {
					fmt.Println("▶️  Detection running")
				}
			case "stop":
				pipeline.Stop()
				fmt.Println("⏹  Detection stopped")
			case "nav":
				if err := navigator.HandleNavPress(ctx); err != nil {
					fmt.Printf("⚠️  %v\n", err)
				}
			case "clone":
				if !cloning {
					if err := cloner.Start(ctx); err != nil {
						fmt.Printf("⚠️  %v\n", err)
						continue
					}
					cloning = true
					fmt.Println("🎙  Recording voice sample; type clone again to finish")
				} else {
					cloning = false
					voice, err := cloner.Finish(ctx)
					if err != nil {
						fmt.Printf("⚠️  Clone failed: %v\n", err)
						continue
					}
					fmt.Printf("✅ Voice ready: %s\n", voice.ID)
				}
			case "quit", "exit", "q":
				pipeline.Stop()
				cancel()
				return
			case "":
			default:
				fmt.Println("Commands: start, stop, nav, clone, quit")
			}
		}
	}
}

// overlayURL derives the overlay websocket URL from the gateway base URL.
func overlayURL(base string) string {
	ws := strings.Replace(base, "http://", "ws://", 1)
	ws = strings.Replace(ws, "https://", "wss://", 1)
	return strings.TrimRight(ws, "/") + "/ws/overlay?role=publish"
}
