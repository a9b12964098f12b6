package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/normen/mooerctl/config"
	"github.com/normen/mooerctl/msg"
)

// Hub fans pedal events out to websocket clients and posts their
// commands to the pedal session.
type Hub struct {
	requests chan<- interface{}
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Command is what clients send, e.g. {"type":"preset","index":3}.
type Command struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	ID    int    `json:"id"`
}

func NewHub(requests chan<- interface{}) *Hub {
	return &Hub{
		requests: requests,
		clients:  make(map[*client]struct{}),
	}
}

// InitRemote serves the event socket on the configured address.
func InitRemote(toDev chan<- interface{}, fromDev <-chan interface{}) {
	hub := NewHub(toDev)
	go hub.Run(context.Background(), fromDev)
	server := &http.Server{Addr: config.Config.Remote.Listen, Handler: hub.Handler()}
	go func() {
		log.Printf("Remote listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil {
			log.Printf("Remote server stopped: %v", err)
		}
	}()
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.serveEvents)
	return mux
}

// Run broadcasts every event until ctx is done.
func (h *Hub) Run(ctx context.Context, events <-chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case e := <-events:
			data, err := EncodeEvent(e)
			if err != nil {
				continue
			}
			h.Broadcast(data)
		}
	}
}

func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("Dropping slow remote client %s", c.conn.RemoteAddr())
			h.remove(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print(err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		h.remove(c)
		h.mu.Unlock()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Print(err)
			}
			return
		}
		request, err := DecodeCommand(data)
		if err != nil {
			log.Printf("Remote command: %v", err)
			continue
		}
		h.requests <- request
	}
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Print(err)
			break
		}
	}
	c.conn.Close()
}

// remove expects h.mu to be held
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}

// EncodeEvent renders a pedal event as JSON with a "type" field.
func EncodeEvent(event interface{}) ([]byte, error) {
	var v map[string]interface{}
	switch e := event.(type) {
	case msg.IdentityMessage:
		v = map[string]interface{}{"type": "identity", "version": e.Version, "model": e.Model}
	case msg.PatchChangeMessage:
		v = map[string]interface{}{"type": "patch", "index": e.Index, "name": e.Name}
	case msg.PatchSettingMessage:
		v = map[string]interface{}{"type": "patch-setting", "index": e.Index, "name": e.Name}
	case msg.SettingsChangedMessage:
		v = map[string]interface{}{"type": "settings", "group": e.Group, "name": e.Name}
	case msg.AmpSettingsMessage:
		v = map[string]interface{}{"type": "amp", "gain": e.Gain, "treble": e.Treble, "master": e.Master}
	case msg.StatusMessage:
		v = map[string]interface{}{"type": "status", "text": e.Text}
	default:
		return nil, fmt.Errorf("no remote event for %T", event)
	}
	return json.Marshal(v)
}

// DecodeCommand parses a client command into a pedal request.
func DecodeCommand(data []byte) (interface{}, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	switch cmd.Type {
	case "identify":
		return msg.IdentifyRequest{}, nil
	case "patches":
		return msg.PatchListRequest{}, nil
	case "preset":
		return msg.PresetChangeRequest{Index: cmd.Index}, nil
	case "menu":
		if cmd.ID < 0 || cmd.ID > 0xFF {
			return nil, fmt.Errorf("menu id %d out of range", cmd.ID)
		}
		return msg.MenuRequest{Menu: byte(cmd.ID)}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd.Type)
}
