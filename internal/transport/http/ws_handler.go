package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/core"
	"github.com/chatcore-io/chatcore-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the hub.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: logger}
}

// wsConn adapts a WebSocket connection to core.Conn. Outbound frames
// go through the events channel so only the write loop touches the
// socket.
type wsConn struct {
	id     string
	userID string
	events chan proto.Outbound
}

func (c *wsConn) ID() string     { return c.id }
func (c *wsConn) UserID() string { return c.userID }

// Send enqueues an event frame. A full buffer that does not drain
// before the context deadline means the client is not keeping up, and
// the caller treats that as a dead connection.
func (c *wsConn) Send(ctx context.Context, event string, payload any) error {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event, Data: payload}
	select {
	case c.events <- out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle terminates the WebSocket handshake. The identity comes from
// the auth middleware, so an unauthenticated request never reaches
// this point.
func (h *WSHandler) Handle(c *gin.Context) {
	userID := c.GetString(ContextKeyUserID)

	sock, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer sock.Close(websocket.StatusInternalError, "internal error")

	conn := &wsConn{
		id:     uuid.NewString(),
		userID: userID,
		events: make(chan proto.Outbound, 64),
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if err := h.hub.OnConnect(ctx, conn); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("ws connect rejected")
		sock.Close(websocket.StatusPolicyViolation, "unknown user")
		return
	}
	defer h.hub.OnDisconnect(conn)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, sock, conn)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, sock, conn)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", conn.id).Msg("ws connection closed with error")
		}
	}

	sock.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, sock *websocket.Conn, conn *wsConn) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, sock, &inbound); err != nil {
			return err
		}

		reply := h.dispatch(ctx, conn, inbound)
		if reply == nil {
			continue
		}
		select {
		case conn.events <- *reply:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, sock *websocket.Conn, conn *wsConn) error {
	for {
		select {
		case out := <-conn.events:
			if err := wsjson.Write(ctx, sock, out); err != nil {
				h.log.Error().Err(err).Str("conn_id", conn.id).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch executes one inbound frame against the hub and returns the
// reply frame, or nil when the frame has none.
func (h *WSHandler) dispatch(ctx context.Context, conn *wsConn, inbound proto.Inbound) *proto.Outbound {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var data proto.JoinData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformedFrame()
		}
		if err := h.hub.JoinConversation(ctx, conn, data.Conversation); err != nil {
			return errorFrame(err)
		}
		return nil

	case proto.InboundTypeLeave:
		var data proto.JoinData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformedFrame()
		}
		h.hub.LeaveConversation(conn, data.Conversation)
		return nil

	case proto.InboundTypeMsg:
		var data proto.MsgData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformedFrame()
		}
		msgID, err := h.hub.SendMessage(ctx, data.Conversation, conn.userID, data.Text)
		if err != nil {
			return errorFrame(err)
		}
		return &proto.Outbound{Type: proto.OutboundTypeAck, Data: proto.MsgAck{Message: msgID}}

	case proto.InboundTypeRead:
		var data proto.ReadData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformedFrame()
		}
		if err := h.hub.MarkRead(ctx, data.Message, conn.userID); err != nil {
			return errorFrame(err)
		}
		return nil

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformedFrame()
		}
		if err := h.hub.NotifyTyping(ctx, data.Conversation, conn.userID); err != nil {
			return errorFrame(err)
		}
		return nil

	case proto.InboundTypeStatus:
		var data proto.StatusData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformedFrame()
		}
		statuses := h.hub.GetOnlineStatus(data.Users)
		return &proto.Outbound{Type: proto.OutboundTypeAck, Data: proto.StatusReply{Users: statuses}}

	default:
		return &proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: core.ErrCodeValidation, Msg: "unknown frame type"},
		}
	}
}

func malformedFrame() *proto.Outbound {
	return &proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: core.ErrCodeValidation, Msg: "malformed frame data"},
	}
}

func errorFrame(err error) *proto.Outbound {
	var coreErr *core.CoreError
	if errors.As(err, &coreErr) {
		return &proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: coreErr.Code, Msg: coreErr.Message},
		}
	}
	return &proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: core.ErrCodeServer, Msg: "internal error"},
	}
}
