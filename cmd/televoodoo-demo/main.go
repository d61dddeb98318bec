// Command televoodoo-demo starts a Televoodoo session over TCP/UDP and
// prints every event it receives to the terminal, color-coded by kind.
// It mirrors the flag-parsing and bracket-tagged logging shape of the
// teacher's server/main.go, swapping a chat room for a pose pipeline.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"televoodoo"
	"televoodoo/config"
	"televoodoo/event"
)

func main() {
	addr := flag.String("addr", ":50000", "TCP listen address")
	beaconPort := flag.Int("beacon-port", 50001, "UDP discovery beacon port (negative to disable)")
	diagAddr := flag.String("diag-addr", "", "diagnostic HTTP address for /health, /api/session, /metrics (empty to disable)")
	scale := flag.Float64("scale", 1.0, "uniform position scale applied to every pose")
	upsampleHz := flag.Float64("upsample-hz", 0, "resampler upsample rate in Hz (0 disables upsampling)")
	rateLimitHz := flag.Float64("rate-limit-hz", 0, "resampler output rate cap in Hz (0 disables rate limiting)")
	regulated := flag.Bool("regulated", false, "run the resampler in fully regulated mode")
	velLimit := flag.Float64("vel-limit", 0, "motion limiter velocity cap in units/s (0 disables)")
	accLimit := flag.Float64("acc-limit", 0, "motion limiter acceleration cap in units/s^2 (0 disables)")
	verbose := flag.Bool("verbose", false, "print every pose event instead of just connection/session events")
	flag.Parse()

	cfg := config.Default()
	cfg.Scale = *scale
	if *upsampleHz > 0 {
		cfg.UpsampleToFrequencyHz = upsampleHz
	}
	if *rateLimitHz > 0 {
		cfg.RateLimitFrequencyHz = rateLimitHz
	}
	cfg.Regulated = *regulated
	if *velLimit > 0 {
		cfg.VelLimit = velLimit
	}
	if *accLimit > 0 {
		cfg.AccLimit = accLimit
	}
	cfg.EnsureAuth()

	printer := newEventPrinter(*verbose)

	handle, err := televoodoo.StartSession(televoodoo.StartConfig{
		Callback:   printer.handle,
		Connection: televoodoo.ConnAuto,
		TCPAddr:    *addr,
		BeaconPort: *beaconPort,
		Config:     cfg,
		DiagAddr:   *diagAddr,
	})
	if err != nil {
		log.Fatalf("[televoodoo] %v", err)
	}

	log.Printf("[televoodoo] listening on %s, pairing code %s", *addr, color.YellowString(cfg.AuthCode))
	if *beaconPort > 0 {
		log.Printf("[televoodoo] discovery beacon on UDP port %d", *beaconPort)
	}
	if *diagAddr != "" {
		log.Printf("[televoodoo] diagnostics on %s", *diagAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[televoodoo] shutting down...")
		cancel()
	}()

	<-ctx.Done()
	if err := handle.Stop(); err != nil {
		log.Printf("[televoodoo] stop: %v", err)
	}
}

// eventPrinter renders pipeline events to stdout, color-coded by kind.
// Pose events are noisy by design (they arrive at tracker rate), so they
// are suppressed unless verbose is set.
type eventPrinter struct {
	verbose bool
}

func newEventPrinter(verbose bool) *eventPrinter {
	return &eventPrinter{verbose: verbose}
}

func (p *eventPrinter) handle(e event.Event) {
	switch e.Tag {
	case event.TagPose:
		if !p.verbose {
			return
		}
		abs := e.Pose.AbsoluteInput
		c := color.New(color.FgWhite)
		c.Printf("[pose] x=%.3f y=%.3f z=%.3f qw=%.3f\n", abs.X, abs.Y, abs.Z, abs.Qw)

	case event.TagConnected:
		log.Println(color.GreenString("[event] tracker connected"))
	case event.TagSession:
		log.Println(color.GreenString("[event] session %s on %s (code %s)", e.Session.Name, e.Session.Transport, e.Session.Code))
	case event.TagDisconnected:
		log.Println(color.RedString("[event] disconnected: %s", e.Disconnected.Reason))
	case event.TagSessionRejected:
		log.Println(color.RedString("[event] session rejected: %s", e.Rejected.Reason))
	case event.TagError:
		log.Println(color.RedString("[event] error: %s", e.Warning.Message))
	case event.TagWarn, event.TagMotionLimitWarning:
		log.Println(color.YellowString("[event] warn: %s", e.Warning.Message))
	case event.TagBeaconStarted, event.TagServerListening, event.TagBLEAdvertising:
		log.Println(color.CyanString("[event] %s", e.Tag))
	case event.TagCommand:
		log.Printf("[event] command %s=%v", e.Command.Name, e.Command.Value)
	default:
		log.Printf("[event] %s", e.Tag)
	}
}
