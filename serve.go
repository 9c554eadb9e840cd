package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voicerelay/hub"
	"voicerelay/metrics"
	"voicerelay/protocol"
	"voicerelay/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}
		if cmd.Flags().Changed("answer-probes") {
			cfg.Server.AnswerProbes, _ = cmd.Flags().GetBool("answer-probes")
		}

		broadcaster := hub.New()
		appMetrics := metrics.NewMetrics()
		handler := protocol.NewHandler(broadcaster,
			protocol.WithRecorder(appMetrics),
			protocol.WithProbeAnswering(cfg.Server.AnswerProbes),
		)
		relay := websocket.NewServer(broadcaster, handler, websocket.Options{
			WriteWait:      cfg.Server.WriteTimeout,
			PongWait:       cfg.Server.PongWait,
			MaxMessageSize: cfg.Server.MaxMessageBytes,
			SendQueue:      cfg.Server.SendQueue,
		}, appMetrics)

		mux := http.NewServeMux()
		mux.Handle("/ws", relay)
		mux.HandleFunc("/health", healthHandler)
		mux.HandleFunc("/stats", statsHandler(broadcaster))
		mux.Handle("/metrics", appMetrics.Handler())

		server := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			scheme := "ws"
			var err error
			if cfg.Server.TLSEnabled() {
				scheme = "wss"
				slog.Info("server starting", "addr", server.Addr, "url", scheme+"://"+server.Addr+"/ws")
				err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
			} else {
				slog.Info("server starting", "addr", server.Addr, "url", scheme+"://"+server.Addr+"/ws")
				err = server.ListenAndServe()
			}
			if !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			if err != nil {
				slog.Error("server error", "error", err)
				return err
			}
		case <-ctx.Done():
		}

		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "listen port (overrides config and PORT)")
	serveCmd.Flags().Bool("answer-probes", false, "answer PING messages at the relay instead of forwarding them")
	rootCmd.AddCommand(serveCmd)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(broadcaster *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels, sessions := broadcaster.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"channels": channels, "sessions": sessions})
	}
}
