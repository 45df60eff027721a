// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/field_logger/internal/config"
	"github.com/relabs-tech/field_logger/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewer is served on the local network only
	},
}

const wsWriteTimeout = 2 * time.Second

// statusHub keeps the latest status and pushes every update to the
// connected websocket clients.
type statusHub struct {
	mu      sync.Mutex
	last    telemetry.Status
	have    bool
	clients map[*websocket.Conn]struct{}
}

func newStatusHub() *statusHub {
	return &statusHub{clients: make(map[*websocket.Conn]struct{})}
}

// update decodes one MQTT payload and broadcasts it.
func (h *statusHub) update(payload []byte) error {
	var st telemetry.Status
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("status unmarshal: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = st
	h.have = true
	for conn := range h.clients {
		if err := writeStatus(conn, st); err != nil {
			log.Printf("web: dropping client %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

func writeStatus(conn *websocket.Conn, st telemetry.Status) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(st)
}

func (h *statusHub) handleStatus(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	st, have := h.last, h.have
	h.mu.Unlock()

	if !have {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (h *statusHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	if h.have {
		if err := writeStatus(conn, h.last); err != nil {
			h.mu.Unlock()
			conn.Close()
			return
		}
	}
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	log.Printf("web: client connected from %s", conn.RemoteAddr())

	// Reads only detect the close; clients never send anything.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("web: websocket error: %v", err)
			}
			break
		}
	}

	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *statusHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexPage)
	})
	return mux
}

// RunWeb serves the latest logger status over HTTP and websocket until
// ctx is done.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	hub := newStatusHub()

	// 1) Connect to MQTT broker
	client, err := connectMQTT(cfg, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// 2) Subscribe to the status topic
	token := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := hub.update(msg.Payload()); err != nil {
			log.Printf("web: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicStatus)

	// 3) HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           hub.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("web server listening on %s", srv.Addr)
	return serve(ctx, srv)
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("web: shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-stopped
	return nil
}

const indexPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Field logger</title>
<style>
body { font-family: monospace; background: #000; color: #fff; }
pre { font-size: 1.6em; }
</style>
</head>
<body>
<pre id="lines">waiting for logger...</pre>
<pre id="detail"></pre>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (ev) => {
  const st = JSON.parse(ev.data);
  document.getElementById("lines").textContent =
    st.lines.join("\n") + "\nBat:" + st.battery_pct.toFixed(2) + "%";
  let d = st.recorded ? "recorded to " + st.log_file : "";
  if (st.last_error) d += "\nerror: " + st.last_error;
  document.getElementById("detail").textContent = d;
};
ws.onclose = () => { document.getElementById("lines").textContent = "disconnected"; };
</script>
</body>
</html>
`
