package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"voicerelay/audio"
	"voicerelay/client"
	"voicerelay/config"
	"voicerelay/domain"
	"voicerelay/websocket"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Join a voice channel and stream audio through the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyConnectFlags(cmd, &cfg.Client)
		if err := cfg.Client.Validate(); err != nil {
			return fmt.Errorf("client config: %w", err)
		}

		tlsConfig, err := clientTLS(cfg.Client)
		if err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		record, _ := cmd.Flags().GetString("record")
		format := audio.Format{SampleRate: cfg.Client.SampleRate, Channels: cfg.Client.Channels}

		session := client.NewSession(client.Config{
			URI: cfg.Client.URI,
			Dial: client.WebSocketDialer(websocket.DialOptions{
				Channel:          cfg.Client.Channel,
				TLSConfig:        tlsConfig,
				HandshakeTimeout: cfg.Client.HandshakeTimeout,
			}),
			Devices:       deviceOpener(input, output, record, format),
			Suppressor:    audio.NewSuppressor(cfg.Client.Suppressor, int16(cfg.Client.GateThreshold)),
			Sink:          newConsoleSink(os.Stderr),
			ChunkSamples:  cfg.Client.ChunkSamples,
			ProbeInterval: cfg.Client.ProbeInterval,
			EchoProbes:    cfg.Client.EchoProbes,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := session.Connect(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			session.Disconnect()
			return nil
		case <-session.Done():
			return session.Err()
		}
	},
}

func init() {
	f := connectCmd.Flags()
	f.StringP("uri", "u", "", "relay URI, e.g. wss://relay.example.com:8765/ws")
	f.String("channel", "", "voice channel to join")
	f.StringP("input", "i", "tone", "capture source: raw PCM file, '-' for stdin, or 'tone'")
	f.StringP("output", "o", "", "playback sink: raw PCM file, '-' for stdout, or empty to discard")
	f.String("record", "", "also record received audio to this WAV file")
	f.Int("chunk-samples", 0, "samples per frame")
	f.Duration("probe-interval", 0, "interval between latency probes")
	f.String("suppress", "", "noise suppression: none or gate")
	f.Bool("insecure", false, "skip TLS certificate verification")
	f.String("ca-file", "", "PEM file with the relay's CA certificate")
	f.Bool("no-echo", false, "do not answer peers' latency probes")
	rootCmd.AddCommand(connectCmd)
}

func applyConnectFlags(cmd *cobra.Command, c *config.ClientConfig) {
	f := cmd.Flags()
	if v, _ := f.GetString("uri"); v != "" {
		c.URI = v
	}
	if v, _ := f.GetString("channel"); v != "" {
		c.Channel = v
	}
	if v, _ := f.GetInt("chunk-samples"); v != 0 {
		c.ChunkSamples = v
	}
	if v, _ := f.GetDuration("probe-interval"); v != 0 {
		c.ProbeInterval = v
	}
	if v, _ := f.GetString("suppress"); v != "" {
		c.Suppressor = v
	}
	if v, _ := f.GetString("ca-file"); v != "" {
		c.CAFile = v
	}
	if f.Changed("insecure") {
		c.InsecureTLS, _ = f.GetBool("insecure")
	}
	if noEcho, _ := f.GetBool("no-echo"); noEcho {
		c.EchoProbes = false
	}
}

func clientTLS(c config.ClientConfig) (*tls.Config, error) {
	if !strings.HasPrefix(c.URI, "wss://") && !strings.HasPrefix(c.URI, "https://") {
		return nil, nil
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.InsecureTLS}
	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", c.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

func deviceOpener(input, output, record string, format audio.Format) client.DeviceOpener {
	return func() (domain.Capture, domain.Playback, error) {
		var capture domain.Capture
		switch input {
		case "tone":
			capture = audio.NewToneCapture(format, 440)
		case "-":
			capture = audio.NewReaderCapture(os.Stdin, format, false)
		default:
			file, err := os.Open(input)
			if err != nil {
				return nil, nil, &domain.DeviceError{Device: "capture", Err: err}
			}
			capture = audio.NewReaderCapture(file, format, true)
		}

		var sinks audio.Tee
		switch output {
		case "":
		case "-":
			sinks = append(sinks, audio.NewWriterPlayback(unclosable{os.Stdout}))
		default:
			file, err := os.Create(output)
			if err != nil {
				capture.Close()
				return nil, nil, &domain.DeviceError{Device: "playback", Err: err}
			}
			sinks = append(sinks, audio.NewWriterPlayback(file))
		}
		if record != "" {
			file, err := os.Create(record)
			if err == nil {
				var rec *audio.WAVRecorder
				if rec, err = audio.NewWAVRecorder(file, format); err == nil {
					sinks = append(sinks, rec)
				} else {
					file.Close()
				}
			}
			if err != nil {
				capture.Close()
				sinks.Close()
				return nil, nil, &domain.DeviceError{Device: "playback", Err: err}
			}
		}
		if len(sinks) == 0 {
			sinks = append(sinks, audio.NewWriterPlayback(io.Discard))
		}
		return capture, sinks, nil
	}
}

// unclosable hides the Close method of stdout.
type unclosable struct{ io.Writer }

// consoleSink prints status lines to the terminal, colored by kind.
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) Display(text string) {
	c := color.New(color.FgCyan)
	switch {
	case strings.HasPrefix(text, "Latency"):
		c = color.New(color.FgHiBlack)
	case strings.Contains(text, "failed") || strings.Contains(text, "closed the connection"):
		c = color.New(color.FgRed)
	case strings.HasPrefix(text, "Connected"):
		c = color.New(color.FgGreen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c.Fprintln(s.out, text)
}
