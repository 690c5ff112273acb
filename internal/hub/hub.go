package hub

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/service"
)

// WebSocket timing and size limits shared by hub and client.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// HubMessage is the unit of work on the hub's internal channel.
type HubMessage struct {
	Type    string // "register", "unregister", "event"
	Client  *Client
	RawData []byte // inbound payload, only for "event"
}

// Hub owns every live connection and serializes their events through one
// run loop. Dispatching from a single goroutine keeps events from one
// connection in arrival order and makes broadcast order per room match
// processing order; everything slow (history reads, log writes) happens
// off this loop.
type Hub struct {
	messageChan chan HubMessage
	quit        chan struct{}
	collab      *service.CollaborationService
}

// NewHub creates a Hub routing events through collab.
func NewHub(collab *service.CollaborationService) *Hub {
	if collab == nil {
		panic("CollaborationService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		quit:        make(chan struct{}),
		collab:      collab,
	}
}

// Run processes hub messages until Stop is called. Run it in its own
// goroutine.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")

	for {
		var msg HubMessage
		select {
		case msg = <-h.messageChan:
		case <-h.quit:
			log.Info("Hub stopped")
			return
		}
		switch msg.Type {
		case "register":
			if msg.Client == nil {
				log.Error("Hub: register message without client")
				continue
			}
			log.WithField("conn", msg.Client.ConnID()).Info("Client registered")
		case "unregister":
			if msg.Client == nil {
				continue
			}
			h.collab.Disconnect(msg.Client.Session())
			msg.Client.Stop()
			log.WithField("conn", msg.Client.ConnID()).Info("Client unregistered")
		case "event":
			if msg.Client == nil {
				continue
			}
			h.collab.Dispatch(context.Background(), msg.Client.Session(), msg.RawData)
		default:
			log.Warnf("Hub: unknown message type %q", msg.Type)
		}
	}
}

// Stop ends the run loop. Messages still queued, or queued after Stop,
// are never processed.
func (h *Hub) Stop() {
	close(h.quit)
}

// QueueMessage puts a message on the hub's queue without blocking.
// Returns false when the queue is full and the message was dropped.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// QueueMessageWait blocks until the message is queued or the hub stops.
// Used for messages that must not be dropped, like unregister cleanup.
// Returns false only when the hub has stopped.
func (h *Hub) QueueMessageWait(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	case <-h.quit:
		return false
	}
}
