// eventsim es una fuente de eventos de prueba: cada línea de stdin se emite
// como un frame de chat a todos los clientes conectados.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func (h *hub) add(c *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.Close()
	}
}

func (h *hub) broadcast(payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.clients, c)
			c.Close()
			continue
		}
		sent++
	}
	return sent
}

func main() {
	addr := flag.String("addr", ":21213", "listen address")
	nickname := flag.String("nick", "roger100", "nickname for every event")
	uniqueID := flag.String("unique", "zerodytester", "uniqueId for every event")
	moderator := flag.Bool("mod", false, "mark every event as sent by a moderator")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := &hub{clients: make(map[*websocket.Conn]struct{})}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("upgrade failed", slog.Any("err", err))
			return
		}
		slog.Info("client connected", slog.String("remote", r.RemoteAddr), slog.Int("clients", h.add(conn)))
		go func() {
			defer h.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen failed", slog.Any("err", err))
			stop()
		}
	}()
	slog.Info("event simulator listening", slog.String("addr", *addr))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	// "mod: texto" envía ese mensaje como moderador sin importar -mod.
	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case line, ok := <-lines:
			if !ok || strings.EqualFold(strings.TrimSpace(line), "exit") {
				running = false
				break
			}
			isMod := *moderator
			if rest, found := strings.CutPrefix(line, "mod:"); found {
				isMod = true
				line = strings.TrimSpace(rest)
			}
			payload, err := chatFrame(line, *nickname, *uniqueID, isMod)
			if err != nil {
				slog.Warn("encode failed", slog.Any("err", err))
				continue
			}
			slog.Info("event sent", slog.String("comment", line), slog.Bool("moderator", isMod), slog.Int("clients", h.broadcast(payload)))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func chatFrame(comment, nickname, uniqueID string, moderator bool) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event": "chat",
		"data": map[string]any{
			"comment":       comment,
			"userId":        strconv.FormatUint(rand.Uint64(), 10),
			"uniqueId":      uniqueID,
			"nickname":      nickname,
			"followRole":    0,
			"isModerator":   moderator,
			"isSubscriber":  false,
			"topGifterRank": nil,
		},
	})
}
