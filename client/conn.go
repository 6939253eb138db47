package client

import (
	"sync"

	"github.com/gorilla/websocket"

	"marketchat/internal/app/realtime"
)

// Conn is the live-channel transport the client talks through. The production
// implementation wraps a gorilla WebSocket connection; tests substitute a fake
// backed by channels.
type Conn interface {
	ReadEvent() (realtime.Event, error)
	WriteEvent(event realtime.Event) error
	Close() error
}

// wsConn adapts *websocket.Conn to the Conn interface. Gorilla connections allow
// one concurrent writer, so writes are serialized with a mutex.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (w *wsConn) ReadEvent() (realtime.Event, error) {
	var event realtime.Event
	err := w.conn.ReadJSON(&event)
	return event, err
}

func (w *wsConn) WriteEvent(event realtime.Event) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	return w.conn.WriteJSON(event)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
