package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastBufferSize - очередь сообщений между Broadcast и Run
const broadcastBufferSize = 256

// envelope - сериализованное сообщение и его адресат
type envelope struct {
	userID string
	data   []byte
}

// Hub управляет всеми активными WebSocket соединениями
//
// Каждый клиент подписан на события одного пользователя (userId),
// сообщения о сделке получают только подписчики её владельца.
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastTrade(record)
// 4. Остановить: hub.Stop()
type Hub struct {
	clients map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	// Сообщения, не попавшие в очередь из-за переполнения
	dropped atomic.Int64

	origins *OriginChecker
	log     *utils.Logger

	mu sync.RWMutex
}

// NewHub создает Hub. allowedOrigins - разрешённые Origin браузеров,
// пустой список или "*" разрешает все.
func NewHub(allowedOrigins ...string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    NewOriginChecker(allowedOrigins),
		log:        utils.L().WithComponent("ws_hub"),
	}
}

// Run запускает главный цикл Hub до вызова Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client connected", utils.UserID(client.userID), utils.Int("clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client disconnected", utils.UserID(client.userID), utils.Int("clients", total))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// deliver рассылает сообщение подписчикам. Клиенты с заполненным
// буфером отключаются.
func (h *Hub) deliver(msg envelope) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if msg.userID == "" || client.userID == msg.userID {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- msg.data:
		default:
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) > 0 {
		h.mu.Lock()
		for _, client := range toRemove {
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		}
		h.mu.Unlock()
		h.log.Warn("slow clients removed", utils.Int("count", len(toRemove)))
	}
}

// Stop останавливает Run и закрывает каналы клиентов. Повторный вызов безопасен.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast сериализует сообщение и ставит его в очередь.
// userID == "" - всем клиентам. Не блокируется: при полной очереди
// сообщение отбрасывается.
func (h *Hub) Broadcast(userID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("marshal broadcast message", utils.Err(err))
		return
	}
	h.BroadcastRaw(userID, data)
}

// BroadcastRaw ставит в очередь уже сериализованное сообщение
func (h *Hub) BroadcastRaw(userID string, data []byte) {
	select {
	case h.broadcast <- envelope{userID: userID, data: data}:
	case <-h.done:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastTrade отправляет запись журнала владельцу сделки
func (h *Hub) BroadcastTrade(trade *models.TradeRecord) {
	h.Broadcast(trade.UserID, NewTradeMessage(trade))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages - сколько сообщений отброшено из-за переполнения очереди
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
