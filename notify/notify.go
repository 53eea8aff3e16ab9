// Package notify broadcasts order and shop lifecycle events to rooms.
// Delivery is fire-and-forget: failures are logged and never surface to
// the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NewOrder           = "new_order"
	OrderCreated       = "order_created"
	OrderStatusUpdated = "order_status_updated"
	OrderCancelled     = "order_cancelled"
	PaymentReceived    = "payment_received"
	ShopCreated        = "shop_created"
	ShopUpdated        = "shop_updated"
	ShopDeleted        = "shop_deleted"
	ShopStatusChanged  = "shop_status_changed"
	MenuItemAdded      = "menu_item_added"
	MenuItemUpdated    = "menu_item_updated"
	MenuItemDeleted    = "menu_item_deleted"
)

// GlobalRoom addresses every connected client.
const GlobalRoom = "global"

func ShopRoom(id primitive.ObjectID) string     { return "shop_" + id.Hex() }
func CustomerRoom(id primitive.ObjectID) string { return "customer_" + id.Hex() }

type Event struct {
	Room string    `json:"room"`
	Type string    `json:"type"`
	Data any       `json:"data"`
	Time time.Time `json:"time"`
}

type Broadcaster interface {
	Broadcast(ctx context.Context, room, eventType string, data any)
	Close() error
}

func newEvent(room, eventType string, data any) Event {
	return Event{Room: room, Type: eventType, Data: data, Time: time.Now().UTC()}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Broadcast(context.Context, string, string, any) {}
func (Nop) Close() error                                   { return nil }

// Log writes events to a logger instead of a broker.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Broadcast(_ context.Context, room, eventType string, _ any) {
	l.Logger.Info("event", "room", room, "type", eventType)
}

func (Log) Close() error { return nil }

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Broadcast(_ context.Context, room, eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, newEvent(room, eventType, data))
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns "room:type" for each recorded event, in order.
func (r *Recorder) Types() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Room+":"+e.Type)
	}
	return out
}
