// Package local provides in-process adapters for the gateway module.
package local

import (
	"encoding/json"
	"time"

	"github.com/frankieli/raffle_engine/internal/modules/gateway/ws"
	"github.com/frankieli/raffle_engine/pkg/logger"
)

// Envelope is the frame pushed to websocket clients.
type Envelope struct {
	Game    string      `json:"game"`
	Command string      `json:"command"`
	Data    interface{} `json:"data"`
	TS      int64       `json:"ts"`
}

// Broadcaster implements service.GatewayService on top of ws.Manager.
type Broadcaster struct {
	manager *ws.Manager
	now     func() time.Time
}

func NewBroadcaster(manager *ws.Manager) *Broadcaster {
	return &Broadcaster{manager: manager, now: time.Now}
}

func (b *Broadcaster) encode(channel, command string, payload interface{}) []byte {
	msg, err := json.Marshal(Envelope{
		Game:    channel,
		Command: command,
		Data:    payload,
		TS:      b.now().UnixMilli(),
	})
	if err != nil {
		logger.ErrorGlobal().Err(err).Str("command", command).Msg("encode gateway frame")
		return nil
	}
	return msg
}

func (b *Broadcaster) Broadcast(channel, command string, payload interface{}) {
	if msg := b.encode(channel, command, payload); msg != nil {
		b.manager.Broadcast(msg)
	}
}

func (b *Broadcaster) SendToUser(userID, channel, command string, payload interface{}) {
	if msg := b.encode(channel, command, payload); msg != nil {
		b.manager.SendToUser(userID, msg)
	}
}
