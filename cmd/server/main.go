package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gridscore.app/internal/engine"
	"gridscore.app/internal/feed"
	"gridscore.app/internal/grid"
	"gridscore.app/internal/persistence/layoutdb"
	persistlog "gridscore.app/internal/persistence/log"
	"gridscore.app/internal/transport/ws"
	"gridscore.app/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides tuning)")
		sessionID  = flag.String("session", "board_1", "session id")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "", "runtime data directory (overrides tuning)")
		feedURL    = flag.String("feed_url", "", "activity feed endpoint (overrides tuning)")
		feedFile   = flag.String("feed_file", "", "seed the grid from a local JSON feed file")
		disableDB  = flag.Bool("disable_db", false, "disable the layout store")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *addr != "" {
		tune.ListenAddr = *addr
	}
	if *dataDir != "" {
		tune.DataDir = *dataDir
	}
	if *feedURL != "" {
		tune.FeedURL = *feedURL
	}

	sessionDir := filepath.Join(tune.DataDir, "sessions", *sessionID)
	_ = os.MkdirAll(sessionDir, 0o755)

	g := grid.New()
	eng := engine.New(g, engine.Config{SingleInstancePerType: tune.SingleInstancePerType})
	session := engine.NewSession(engine.SessionConfig{ID: *sessionID, InboxSize: tune.InboxSize}, g, eng)

	mutLog := persistlog.NewMutationLogger(sessionDir)
	defer mutLog.Close()
	session.SetAuditLogger(mutLog)

	var layouts *layoutdb.Store
	if !*disableDB {
		layouts, err = layoutdb.Open(filepath.Join(sessionDir, "layouts.db"))
		if err != nil {
			logger.Fatalf("open layout store: %v", err)
		}
		defer layouts.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := session.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("session stopped: %v", err)
		}
	}()

	// Seed the grid before serving, if a local feed file was given.
	if *feedFile != "" {
		records, err := feed.LoadFile(*feedFile)
		if err != nil {
			logger.Fatalf("load feed file: %v", err)
		}
		session.Refreshes() <- engine.Refresh{Generation: 1, Records: records}
		logger.Printf("seeded grid from %s (%d records)", *feedFile, len(records))
	}

	if tune.FeedURL != "" {
		go runFeedLoop(ctx, session, tune, *feedFile != "", logger)
	} else if *feedFile == "" {
		logger.Printf("no feed configured; grid starts empty")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := session.Metrics()

		fmt.Fprintf(rw, "# HELP gridscore_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE gridscore_clients gauge\n")
		fmt.Fprintf(rw, "gridscore_clients{session=%q} %d\n", *sessionID, m.Clients)

		fmt.Fprintf(rw, "# HELP gridscore_pieces Current number of placed pieces.\n")
		fmt.Fprintf(rw, "# TYPE gridscore_pieces gauge\n")
		fmt.Fprintf(rw, "gridscore_pieces{session=%q} %d\n", *sessionID, m.Pieces)

		fmt.Fprintf(rw, "# HELP gridscore_total_score Aggregate score over placed pieces.\n")
		fmt.Fprintf(rw, "# TYPE gridscore_total_score gauge\n")
		fmt.Fprintf(rw, "gridscore_total_score{session=%q} %d\n", *sessionID, m.TotalScore)

		fmt.Fprintf(rw, "# HELP gridscore_feed_generation Last applied feed generation.\n")
		fmt.Fprintf(rw, "# TYPE gridscore_feed_generation gauge\n")
		fmt.Fprintf(rw, "gridscore_feed_generation{session=%q} %d\n", *sessionID, m.Generation)

		fmt.Fprintf(rw, "# HELP gridscore_inbox_depth Intent queue backlog.\n")
		fmt.Fprintf(rw, "# TYPE gridscore_inbox_depth gauge\n")
		fmt.Fprintf(rw, "gridscore_inbox_depth{session=%q} %d\n", *sessionID, m.InboxDepth)
	})

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			SessionID string                `json:"session_id"`
			Metrics   engine.SessionMetrics `json:"metrics"`
		}{
			SessionID: *sessionID,
			Metrics:   session.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/layouts", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if layouts == nil {
			http.Error(rw, "layout store disabled", http.StatusServiceUnavailable)
			return
		}
		switch r.Method {
		case http.MethodPost:
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			pieces, gen, total, err := session.RequestExport(ctx2)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			id, err := layouts.Save(r.URL.Query().Get("name"), gen, total, pieces)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "id": id, "total_score": total})
		case http.MethodGet:
			if idStr := r.URL.Query().Get("id"); idStr != "" {
				id, err := strconv.ParseInt(idStr, 10, 64)
				if err != nil {
					http.Error(rw, "bad id", http.StatusBadRequest)
					return
				}
				layout, err := layouts.Get(id)
				if err != nil {
					http.Error(rw, err.Error(), http.StatusNotFound)
					return
				}
				rw.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(rw).Encode(layout)
				return
			}
			metas, err := layouts.List(100)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(metas)
		default:
			rw.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/v1/ws", ws.NewServer(session, tune.ClientQueueMax, logger).Handler())

	srv := &http.Server{
		Addr:              tune.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", tune.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// runFeedLoop refreshes the grid on a fixed cadence. Fetches run with
// a per-request timeout; a fetch superseded while it was in flight is
// discarded by the session's generation check.
func runFeedLoop(ctx context.Context, session *engine.Session, tune tuning.Tuning, seeded bool, logger *log.Logger) {
	client := feed.NewClient(tune.FeedURL, time.Duration(tune.FeedTimeoutSeconds)*time.Second)
	if seeded {
		// The seed file consumed generation 1.
		client.Advance(1)
	}

	fetch := func() {
		ctx2, cancel := context.WithTimeout(ctx, time.Duration(tune.FeedTimeoutSeconds)*time.Second)
		defer cancel()
		res, err := client.Fetch(ctx2)
		if err != nil {
			logger.Printf("feed fetch: %v", err)
			return
		}
		select {
		case session.Refreshes() <- engine.Refresh{Generation: res.Generation, Records: res.Records}:
		case <-ctx.Done():
		}
	}

	fetch()
	ticker := time.NewTicker(time.Duration(tune.FeedRefreshSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go fetch()
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
