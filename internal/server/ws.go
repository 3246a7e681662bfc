package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, hub *Hub, ingestor *Ingestor) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		log.Printf("[client connected] %s", r.RemoteAddr)

		if welcome := ingestor.Welcome(); welcome != nil {
			_ = conn.WriteMessage(websocket.TextMessage, welcome)
		}

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		// Lone writer for this connection: broadcasts and direct
		// replies both flow through the subscription channel.
		go func() {
			for msg := range ch {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					_ = conn.Close()
					return
				}
			}
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Printf("[client disconnected] %s", r.RemoteAddr)
				return
			}

			if reply := ingestor.Handle(raw); reply != nil {
				select {
				case ch <- reply:
				default:
				}
			}
		}
	})
}
