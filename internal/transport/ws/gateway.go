// Package ws is the websocket gateway for personal playback scopes. Each
// connection is bound to an authenticated user and surfaces the hub's
// operations as JSON frames; events flow back over the same socket.
package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/olahol/melody"
	"go.uber.org/zap"

	"playsync/internal/domain"
	"playsync/internal/hub"
	"playsync/internal/middleware"
)

const (
	keyUserID       = "user_id"
	keyConnectionID = "connection_id"
	keySink         = "sink"
)

type Gateway struct {
	m   *melody.Melody
	hub *hub.Hub
	log *zap.Logger
}

func NewGateway(h *hub.Hub, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{m: melody.New(), hub: h, log: log}
	g.m.HandleConnect(g.handleConnect)
	g.m.HandleDisconnect(g.handleDisconnect)
	g.m.HandleMessage(g.handleMessage)
	return g
}

// Handle upgrades an authenticated request. Connection identity is minted
// here and is never reused: a reconnect is a brand-new connection that must
// register its device again.
func (g *Gateway) Handle(c *gin.Context) {
	keys := map[string]interface{}{
		keyUserID:       c.GetString(middleware.ContextUserID),
		keyConnectionID: uuid.NewString(),
	}
	if err := g.m.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// Close tears down every open connection.
func (g *Gateway) Close() error {
	return g.m.Close()
}

type wsSink struct {
	connID  string
	session *melody.Session
}

func (w *wsSink) ConnectionID() string { return w.connID }

func (w *wsSink) Deliver(ev hub.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return w.session.Write(payload)
}

func (g *Gateway) handleConnect(s *melody.Session) {
	connID := s.MustGet(keyConnectionID).(string)
	s.Set(keySink, &wsSink{connID: connID, session: s})
	g.log.Info("connection opened",
		zap.String("user_id", s.MustGet(keyUserID).(string)),
		zap.String("connection_id", connID))
}

func (g *Gateway) handleDisconnect(s *melody.Session) {
	userID := s.MustGet(keyUserID).(string)
	connID := s.MustGet(keyConnectionID).(string)
	g.hub.ConnectionClosed(userID, connID)
	g.log.Info("connection closed",
		zap.String("user_id", userID),
		zap.String("connection_id", connID))
}

func (g *Gateway) handleMessage(s *melody.Session, data []byte) {
	userID := s.MustGet(keyUserID).(string)
	sink := s.MustGet(keySink).(*wsSink)

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		g.writeError(s, "malformed message")
		return
	}

	switch msg.Type {
	case msgRegisterDevice:
		_, err := g.hub.RegisterDevice(userID, sink, msg.Name, domain.DeviceType(msg.DeviceType))
		if err != nil {
			g.writeError(s, err.Error())
		}

	case msgSelectDevice:
		if err := g.hub.SelectActiveDevice(userID, msg.DeviceID); err != nil {
			g.writeError(s, err.Error())
		}

	case msgGetDevices:
		list := g.hub.GetConnectedDevices(userID)
		g.deliver(sink, hub.Event{Type: hub.EventDeviceListUpdated, DeviceList: &list})

	case msgCommand:
		if msg.Command == nil {
			g.writeError(s, "missing command")
			return
		}
		if err := g.hub.SendCommand(userID, sink.ConnectionID(), *msg.Command); err != nil {
			g.writeError(s, err.Error())
		}

	case msgSyncState:
		if msg.State == nil {
			g.writeError(s, "missing state")
			return
		}
		if err := g.hub.SyncPlaybackState(userID, sink.ConnectionID(), *msg.State); err != nil {
			g.writeError(s, err.Error())
		}

	case msgGetState:
		state := g.hub.GetPlaybackState(userID)
		g.deliver(sink, hub.Event{Type: hub.EventPlaybackStateUpdated, State: state})

	default:
		g.writeError(s, "unknown message type")
	}
}

func (g *Gateway) deliver(sink *wsSink, ev hub.Event) {
	if err := sink.Deliver(ev); err != nil {
		g.log.Warn("reply delivery failed",
			zap.String("connection_id", sink.ConnectionID()),
			zap.Error(err))
	}
}

func (g *Gateway) writeError(s *melody.Session, msg string) {
	payload, _ := json.Marshal(errorFrame{Type: "error", Error: msg})
	if err := s.Write(payload); err != nil {
		g.log.Warn("error frame delivery failed", zap.Error(err))
	}
}
