package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/artmorph-ai/artmorph/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// serveWS is the WebSocket variant of /generate: the client sends the
// snapshot as one binary message, the server answers with one text message
// per chunk and then closes.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if !s.sem.TryAcquire(1) {
		jsonErr(w, "too many concurrent generations", http.StatusServiceUnavailable)
		return
	}
	defer s.sem.Release(1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	tier := r.URL.Query().Get("tier")
	if tier == "" {
		tier = "free"
	}

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	msgType, image, err := conn.ReadMessage()
	if err != nil || msgType != websocket.BinaryMessage {
		writeWSClose(conn, websocket.CloseUnsupportedData, "binary snapshot expected")
		return
	}

	log.Info().Str("tier", tier).Int("bytes", len(image)).Str("remote", r.RemoteAddr).Msg("WS snapshot received")

	run, err := s.gen.Generate(r.Context(), image, tier)
	if err != nil {
		writeWSClose(conn, websocket.CloseUnsupportedData, "invalid image")
		return
	}
	defer run.Close()

	chunks := 0
	for {
		chunk, err := run.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return
			}
			break
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(chunk)); err != nil {
			return
		}
		chunks++
		metrics.ChunksRelayedTotal.Inc()
	}

	s.publishResult(r, tier, run, chunks)
	writeWSClose(conn, websocket.CloseNormalClosure, "")
}

func writeWSClose(conn *websocket.Conn, code int, reason string) {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
