package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tokoBack/internal/models"
)

const (
	readLimit          = 1 << 20
	readDeadline       = 120 * time.Second
	writeDeadline      = 5 * time.Second
	pingInterval       = 15 * time.Second
	firstHelloDeadline = 30 * time.Second
)

type unreg struct {
	userID int
	conn   *websocket.Conn
}

// WebSocketManager pushes every persisted invoice status change to connected
// admin dashboards. It implements services.InvoiceFeed.
type WebSocketManager struct {
	clients    map[int]*websocket.Conn
	broadcast  chan models.Invoice
	register   chan Client
	unregister chan unreg
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[int]*websocket.Conn),
		broadcast:  make(chan models.Invoice, 64),
		register:   make(chan Client),
		unregister: make(chan unreg),
	}
}

type Client struct {
	ID     int
	Socket *websocket.Conn
}

// BroadcastInvoice never blocks the payment flow: if the hub is saturated the
// update is dropped, dashboards resync on the next poll.
func (ws *WebSocketManager) BroadcastInvoice(invoice models.Invoice) {
	select {
	case ws.broadcast <- invoice:
	default:
		log.Printf("ws: broadcast buffer full, dropping invoice %d update", invoice.ID)
	}
}

// All access to clients happens on this goroutine.
func (ws *WebSocketManager) Run() {
	for {
		select {
		case client := <-ws.register:
			if old, ok := ws.clients[client.ID]; ok && old != nil && old != client.Socket {
				_ = old.Close()
			}
			ws.clients[client.ID] = client.Socket
			log.Printf("WS register user=%d", client.ID)

		case u := <-ws.unregister:
			if cur, ok := ws.clients[u.userID]; ok && cur == u.conn {
				_ = cur.Close()
				delete(ws.clients, u.userID)
				log.Printf("WS unregister user=%d", u.userID)
			}

		case invoice := <-ws.broadcast:
			for id, conn := range ws.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteJSON(invoice); err != nil {
					log.Printf("broadcast error to=%d: %v", id, err)
					_ = conn.Close()
					delete(ws.clients, id)
				}
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	ReadBufferSize:    1024,
	WriteBufferSize:   1024,
	EnableCompression: true,
}

// The first frame must be { "token": "<access token>" }. Browsers cannot set
// an Authorization header on the upgrade request, so the connection
// authenticates itself with its first frame; only admins stay.
func (app *application) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(firstHelloDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	var hello struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&hello); err != nil || hello.Token == "" {
		log.Println("invalid hello payload:", err)
		_ = writeClose(conn, websocket.ClosePolicyViolation, "hello required")
		_ = conn.Close()
		return
	}

	claims, err := app.tokenManager.Parse(hello.Token)
	if err != nil || claims.Role != "admin" {
		_ = writeClose(conn, websocket.ClosePolicyViolation, "admin token required")
		_ = conn.Close()
		return
	}
	conn.SetReadDeadline(time.Now().Add(readDeadline))

	client := Client{ID: claims.UserID, Socket: conn}
	app.wsManager.register <- client

	go pingLoop(app.wsManager, conn, claims.UserID)
	go discardIncoming(app.wsManager, conn, claims.UserID)
}

func pingLoop(ws *WebSocketManager, conn *websocket.Conn, uid int) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for range t.C {
		_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			_ = writeClose(conn, websocket.CloseGoingAway, "ping error")
			ws.unregister <- unreg{userID: uid, conn: conn}
			return
		}
	}
}

// The feed is one-way; the read loop only services control frames and detects
// disconnects.
func discardIncoming(ws *WebSocketManager, conn *websocket.Conn, uid int) {
	defer func() {
		ws.unregister <- unreg{userID: uid, conn: conn}
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeDeadline),
	)
}
