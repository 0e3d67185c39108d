// Chronicles of the Unspoken - voice-driven interrogation game over a live
// multimodal session.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os/signal"
	"syscall"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/internal/log"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/chronicle"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/game"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		stdlog.Fatalf("configuration error: %v", err)
	}

	app, err := chronicle.New(cfg)
	if err != nil {
		stdlog.Fatalf("configuration error: %v", err)
	}

	if err := app.Init(); err != nil {
		stdlog.Fatalf("initialization failed: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		stdlog.Fatalf("runtime error: %v", err)
	}
}

// parseFlags parses command line flags over environment defaults.
func parseFlags() (chronicle.Config, error) {
	cfg := chronicle.DefaultConfig()

	levelFlag := flag.String("level", "interrogation", "Episode to play: interrogation, cyber, forensics, market, defusal (or 1-5)")
	lang := flag.String("lang", string(cfg.Language), "Spoken language: pt or en")
	cameraID := flag.Int("camera", cfg.CameraID, "Camera device ID")
	micDevice := flag.String("mic", cfg.MicDevice, "ALSA capture device")
	noVideo := flag.Bool("no-video", false, "Disable the camera feed")
	dashPort := flag.String("dash-port", cfg.DashPort, "Dashboard port")
	noDash := flag.Bool("no-dash", false, "Disable the monitor dashboard")
	videoInterval := flag.Duration("video-interval", 0, "Frame capture cadence (default 1s)")
	keepDevices := flag.Bool("keep-devices", false, "Keep mic and camera open across reconnects")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	level, err := game.ParseLevel(*levelFlag)
	if err != nil {
		return cfg, err
	}

	cfg.Level = level
	cfg.Language = game.Language(*lang)
	cfg.CameraID = *cameraID
	cfg.MicDevice = *micDevice
	cfg.NoVideo = *noVideo
	cfg.DashPort = *dashPort
	cfg.NoDash = *noDash
	cfg.KeepDevices = *keepDevices
	if *videoInterval > 0 {
		cfg.VideoInterval = *videoInterval
	}

	logLevel := "info"
	if *debug {
		logLevel = "debug"
	}
	log.Init(logLevel)
	cfg.Logger = log.L()

	return cfg, nil
}
