package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/chatcore-io/chatcore-server/internal/core"
	"github.com/chatcore-io/chatcore-server/internal/proto"
)

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "done")
	})
	return conn
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal frame data: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
		t.Fatalf("write %s frame: %v", frameType, err)
	}
}

// readFrame reads outbound frames until one matches the wanted type.
func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) rawOutbound {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read ws frame: %v", err)
		}
		if out.Type == wantType {
			return out
		}
	}
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("ws request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 401 {
		t.Fatalf("expected status 401, got %d", resp.StatusCode)
	}
}

func TestWebSocketPrivateMessageDelivery(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	conv, err := env.hub.Members().CreateConversation(context.Background(), []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts, env.token(t, "alice"))
	bob := dialWS(t, ctx, ts, env.token(t, "bob"))

	sendFrame(t, ctx, alice, proto.InboundTypeMsg, proto.MsgData{
		Conversation: conv.ID,
		Text:         "hi there",
	})

	ack := readFrame(t, ctx, alice, proto.OutboundTypeAck)
	var ackData proto.MsgAck
	if err := json.Unmarshal(ack.Data, &ackData); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ackData.Message == "" {
		t.Fatal("expected message id in ack")
	}

	// Bob receives the message event.
	frame := readFrame(t, ctx, bob, proto.OutboundTypeEvent)
	if frame.Event != core.EventMessage {
		t.Fatalf("expected message event, got %q", frame.Event)
	}
	var msgEvent core.MessageEvent
	if err := json.Unmarshal(frame.Data, &msgEvent); err != nil {
		t.Fatalf("unmarshal message event: %v", err)
	}
	if msgEvent.MessageID != ackData.Message {
		t.Errorf("event message id %q does not match ack %q", msgEvent.MessageID, ackData.Message)
	}
	if msgEvent.Content != "hi there" {
		t.Errorf("unexpected content %q", msgEvent.Content)
	}
	if msgEvent.SenderName != "user alice" {
		t.Errorf("unexpected sender name %q", msgEvent.SenderName)
	}

	// Bob marks it read and alice gets the receipt.
	sendFrame(t, ctx, bob, proto.InboundTypeRead, proto.ReadData{Message: ackData.Message})

	receipt := readFrame(t, ctx, alice, proto.OutboundTypeEvent)
	if receipt.Event != core.EventReadReceipt {
		t.Fatalf("expected read_receipt event, got %q", receipt.Event)
	}
	var receiptEvent core.ReadReceiptEvent
	if err := json.Unmarshal(receipt.Data, &receiptEvent); err != nil {
		t.Fatalf("unmarshal receipt event: %v", err)
	}
	if receiptEvent.ReaderID != "bob" {
		t.Errorf("expected reader bob, got %q", receiptEvent.ReaderID)
	}
}

func TestWebSocketTypingIndicator(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	conv, err := env.hub.Members().CreateConversation(context.Background(), []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts, env.token(t, "alice"))
	bob := dialWS(t, ctx, ts, env.token(t, "bob"))

	sendFrame(t, ctx, alice, proto.InboundTypeTyping, proto.TypingData{Conversation: conv.ID})

	frame := readFrame(t, ctx, bob, proto.OutboundTypeEvent)
	if frame.Event != core.EventTyping {
		t.Fatalf("expected typing event, got %q", frame.Event)
	}
	var typing core.TypingEvent
	if err := json.Unmarshal(frame.Data, &typing); err != nil {
		t.Fatalf("unmarshal typing event: %v", err)
	}
	if typing.UserID != "alice" || typing.ConversationID != conv.ID {
		t.Fatalf("unexpected typing payload: %+v", typing)
	}
}

func TestWebSocketSendErrors(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts, env.token(t, "alice"))

	sendFrame(t, ctx, alice, proto.InboundTypeMsg, proto.MsgData{
		Conversation: "missing",
		Text:         "hello",
	})

	frame := readFrame(t, ctx, alice, proto.OutboundTypeError)
	if frame.Error == nil || frame.Error.Code != core.ErrCodeNotFound {
		t.Fatalf("expected not_found error, got %+v", frame.Error)
	}

	sendFrame(t, ctx, alice, "bogus", struct{}{})
	frame = readFrame(t, ctx, alice, proto.OutboundTypeError)
	if frame.Error == nil || frame.Error.Code != core.ErrCodeValidation {
		t.Fatalf("expected validation error, got %+v", frame.Error)
	}
}

func TestWebSocketStatusQuery(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts, env.token(t, "alice"))
	_ = dialWS(t, ctx, ts, env.token(t, "bob"))

	// Bob's connect is async from alice's point of view, poll until it
	// is visible.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sendFrame(t, ctx, alice, proto.InboundTypeStatus, proto.StatusData{Users: []string{"bob", "carol"}})
		ack := readFrame(t, ctx, alice, proto.OutboundTypeAck)

		var reply proto.StatusReply
		if err := json.Unmarshal(ack.Data, &reply); err != nil {
			t.Fatalf("unmarshal status reply: %v", err)
		}
		if reply.Users["carol"] {
			t.Fatal("carol should be offline")
		}
		if reply.Users["bob"] {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("bob never reported online")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
