package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/optibot/internal/domain"
)

const (
	decisionPollInterval = 2 * time.Second
	heartbeatInterval    = 30 * time.Second

	acmeChallengeAddr = ":80"
	defaultCertCache  = "cert-cache"
)

type statusReader interface {
	Statuses() []domain.BotStatus
}

type decisionReader interface {
	EventsAfter(index uint64) ([]domain.DecisionEventRecord, error)
}

// Server exposes HTTP endpoints serving bot status, the HTML UI and an SSE stream of decisions.
type Server struct {
	Addr          string
	Bots          statusReader
	DecisionStore decisionReader

	l            *zap.Logger
	pollInterval time.Duration
}

// NewServer creates a new web server instance.
func NewServer(addr string, bots statusReader, decisionStore decisionReader, l *zap.Logger) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		Addr:          addr,
		Bots:          bots,
		DecisionStore: decisionStore,
		l:             l,
		pollInterval:  decisionPollInterval,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/decisions/stream", s.handleDecisionStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("Web server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS serves HTTPS on s.Addr with certificates issued through ACME for domains.
// HTTP-01 challenges and HTTP to HTTPS redirects are answered on port 80.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	manager, err := newCertManager(domains, cacheDir)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              acmeChallengeAddr,
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpsSrv := s.tlsServer(manager)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.l.Warn("ACME challenge server shutdown failed", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil {
			s.l.Warn("HTTPS server shutdown failed", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("ACME challenge server failed", zap.Error(err))
		}
	}()

	s.l.Info("Web server listening with automatic TLS",
		zap.String("addr", s.Addr),
		zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newCertManager(domains []string, cacheDir string) (*autocert.Manager, error) {
	if len(domains) == 0 {
		return nil, errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = defaultCertCache
	}

	return &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}, nil
}

func (s *Server) tlsServer(manager *autocert.Manager) *http.Server {
	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	return &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsConfig,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses := []domain.BotStatus{}
	if s.Bots != nil {
		statuses = append(statuses, s.Bots.Statuses()...)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		s.l.Warn("status encode failed", zap.Error(err))
	}
}

func (s *Server) handleDecisionStream(w http.ResponseWriter, r *http.Request) {
	if s.DecisionStore == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "decision store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendDecisions := func() error {
		records, err := s.DecisionStore.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Event)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: decision\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendDecisions(); err != nil {
		http.Error(w, "failed to load decisions", http.StatusInternalServerError)
		s.l.Warn("decision stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendDecisions(); err != nil {
				s.l.Warn("decision stream poll", zap.Error(err))
			}
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>optibot</title>
  <link href="https://fonts.googleapis.com/css2?family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root { --ink:#111111; --ink-mid:#4d4d4d; --panel:#f6f6f6; --call:#1b9aaa; --put:#d7263d; }
    * { box-sizing:border-box; }
    body { margin:0; padding:2rem; background:#fff; color:var(--ink); font-family:'Space Mono',monospace; }
    #app { max-width:1200px; margin:0 auto; display:grid; grid-template-columns:1fr 380px; gap:2rem; }
    h1 { font-size:.8rem; text-transform:uppercase; letter-spacing:.2em; }
    .bot { border:3px solid var(--ink); background:var(--panel); padding:1rem; margin-bottom:1rem; box-shadow:6px 6px 0 rgba(0,0,0,.15); }
    .bot .symbol { font-weight:700; font-size:1.2rem; }
    .bot .line { font-size:.75rem; color:var(--ink-mid); margin-top:.4rem; }
    .decision { border:2px solid var(--ink); padding:.8rem; margin-bottom:.8rem; font-size:.7rem; }
    .CALL { color:var(--call); font-weight:700; }
    .PUT { color:var(--put); font-weight:700; }
    .NONE { color:var(--ink-mid); }
    @media (max-width:640px) { #app { grid-template-columns:1fr; } }
  </style>
</head>
<body>
  <div id="app">
    <section>
      <h1>bots</h1>
      <div id="bots">Loading…</div>
    </section>
    <aside>
      <h1>decisions</h1>
      <div id="decisions"></div>
    </aside>
  </div>
<script>
const botsEl = document.getElementById('bots');
const decisionsEl = document.getElementById('decisions');
const MAX_DECISIONS = 50;

const fmtTime = (ts) => {
  const d = new Date(ts);
  return Number.isNaN(d.getTime()) || d.getFullYear() < 2000 ? '-' : d.toLocaleTimeString([], { hour12:false });
};

async function refreshStatus(){
  try{
    const res = await fetch('/status');
    const bots = await res.json();
    botsEl.replaceChildren(...bots.map((b) => {
      const card = document.createElement('div');
      card.className = 'bot';
      card.innerHTML = '<div class="symbol"></div><div class="line status"></div><div class="line meta"></div>';
      card.querySelector('.symbol').textContent = b.symbol + ' · ' + b.platform;
      card.querySelector('.status').textContent = b.status;
      card.querySelector('.meta').textContent = 'last ' + fmtTime(b.last_cycle) + ' ' + (b.last_outcome || '') +
        (b.last_error ? ' · ' + b.last_error : '');
      return card;
    }));
  }catch(err){
    botsEl.textContent = 'status unavailable';
  }
}

function connectDecisions(){
  const source = new EventSource('/decisions/stream');
  source.addEventListener('decision', (event) => {
    const d = JSON.parse(event.data);
    const card = document.createElement('div');
    card.className = 'decision';
    const head = document.createElement('div');
    head.className = d.signal;
    head.textContent = fmtTime(d.timestamp) + ' ' + d.symbol + ' ' + d.signal + ' ' + d.count + '/' + d.threshold +
      (d.execution ? ' · ' + d.execution : '');
    const body = document.createElement('div');
    body.textContent = 'price ' + d.price.toFixed(2) + ' rsi ' + d.snapshot.rsi.toFixed(1) + ' vwap ' + d.snapshot.vwap.toFixed(2) +
      (d.option_symbol ? ' · ' + d.quantity + ' × ' + d.option_symbol : '') + (d.reason ? ' · ' + d.reason : '');
    card.append(head, body);
    decisionsEl.insertBefore(card, decisionsEl.firstChild);
    while(decisionsEl.children.length > MAX_DECISIONS){
      decisionsEl.removeChild(decisionsEl.lastChild);
    }
  });
  source.addEventListener('error', () => {
    source.close();
    setTimeout(connectDecisions, 2000);
  });
}

refreshStatus();
setInterval(refreshStatus, 5000);
connectDecisions();
</script>
</body>
</html>`
