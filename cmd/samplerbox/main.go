package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/cbegin/samplerbox-go"
	"github.com/cbegin/samplerbox-go/internal/control"
	"github.com/cbegin/samplerbox-go/internal/status"
)

func main() {
	var (
		samplesDir = flag.String("samples", "", "directory holding \"<index> <name>\" preset folders (default: executable dir)")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|oto")
		sampleRate = flag.Int("sample-rate", samplerbox.DefaultSampleRate, "output sample rate")
		block      = flag.Int("block", samplerbox.DefaultBlockFrames, "render block size in frames")
		polyphony  = flag.Int("polyphony", 80, "maximum simultaneous voices")
		presetIdx  = flag.Int("preset", 0, "initial preset index (0..127)")
		midiPath   = flag.String("midi", "", "raw MIDI device or file to read, e.g. /dev/snd/midiC1D0")
		statusAddr = flag.String("status-addr", "", "serve the status display over websocket at this address, e.g. :8080")
		logLevel   = flag.String("log-level", "info", "log level: debug|info|warn|error")
		renderPath = flag.String("render", "", "render to a 16-bit WAV file instead of playing")
		notes      = flag.String("notes", "60,64,67", "comma separated notes struck for -render")
		seconds    = flag.Float64("seconds", 2, "length of -render output")
		keyboard   = flag.Bool("keyboard", true, "play from the computer keyboard when stdin is a terminal")
	)
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	dir := *samplesDir
	if dir == "" {
		dir = executableDir()
	}

	var hub *status.Hub
	reporter := status.Reporter(status.LogReporter{Logger: logger})
	if *statusAddr != "" {
		hub = status.NewHub(logger)
		reporter = status.Multi{reporter, hub}
	}

	opts := []samplerbox.Option{
		samplerbox.WithSamplesDir(dir),
		samplerbox.WithSampleRate(*sampleRate),
		samplerbox.WithBlockFrames(*block),
		samplerbox.WithPolyphony(*polyphony),
		samplerbox.WithInitialPreset(*presetIdx),
		samplerbox.WithReporter(reporter),
		samplerbox.WithLogger(logger),
	}

	if *renderPath != "" {
		if err := render(*renderPath, *notes, *seconds, *sampleRate, append(opts, samplerbox.WithBackend(samplerbox.BackendNone))); err != nil {
			log.Fatal(err)
		}
		return
	}

	be, err := parseBackend(*backend)
	if err != nil {
		log.Fatal(err)
	}
	s, err := samplerbox.New(append(opts, samplerbox.WithBackend(be))...)
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Start(); err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if *midiPath != "" {
		f, err := os.Open(*midiPath)
		if err != nil {
			log.Fatal(err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return f.Close()
		})
		g.Go(func() error {
			err := control.PumpMIDI(f, s)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				return fmt.Errorf("midi input %s: %w", *midiPath, err)
			}
			logger.Info("midi input closed", "path", *midiPath)
			return nil
		})
	}

	if hub != nil {
		mux := http.NewServeMux()
		mux.Handle("/status", hub)
		srv := &http.Server{Addr: *statusAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("status server listening", "addr", *statusAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if *keyboard && term.IsTerminal(int(os.Stdin.Fd())) {
		// The stdin read cannot be interrupted, so this goroutine stays
		// outside the group and ends the program through stop.
		go func() {
			if err := playKeyboard(s, stop); err != nil {
				logger.Error("keyboard input", "err", err)
			}
		}()
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("shutting down", "err", err)
	}
	s.Panic()
}

func playKeyboard(s *samplerbox.Sampler, quit func()) error {
	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, old)
	defer quit()

	fmt.Fprint(os.Stderr, "keys: awsedftgyhujkol play, space sustain, z/x octave, [ ] preset, - = volume, . panic, q quit\r\n")
	kb := control.NewKeyboard(60)
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return err
		}
		if buf[0] == 'q' || buf[0] == 0x03 {
			return nil
		}
		for _, ev := range kb.Key(buf[0]) {
			s.HandleEvent(ev)
		}
	}
}

func render(path, notes string, seconds float64, sampleRate int, opts []samplerbox.Option) error {
	s, err := samplerbox.New(opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		return err
	}
	s.WaitLoaded()
	for _, f := range strings.Split(notes, ",") {
		if strings.TrimSpace(f) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return fmt.Errorf("invalid -notes entry %q: %w", f, err)
		}
		s.NoteOn(n)
	}
	out := samplerbox.RenderOffline(s, int(seconds*float64(sampleRate)))
	return os.WriteFile(path, samplerbox.EncodeWAV16(out, sampleRate, 2), 0o644)
}

func parseBackend(name string) (samplerbox.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ebiten":
		return samplerbox.BackendEbiten, nil
	case "oto":
		return samplerbox.BackendOto, nil
	default:
		return "", fmt.Errorf("invalid -backend %q (expected ebiten|oto)", name)
	}
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
