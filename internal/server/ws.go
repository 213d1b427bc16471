package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			deps.Log.Warn("ws upgrade failed", "error", err)
			return
		}

		conn := newConn(uuid.NewString(), ws, deps)
		conn.log.Info("connection opened", "remote", r.RemoteAddr)
		conn.run()
	})
}
