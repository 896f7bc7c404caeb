package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/chatcore-io/chatcore-server/internal/auth"
	"github.com/chatcore-io/chatcore-server/internal/core"
	"github.com/chatcore-io/chatcore-server/internal/proto"
)

// Smoke client: connects as a user, sends one message into a
// conversation and waits for the ack plus any pushed events.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "user id to connect as")
	name := flag.String("name", "Smoke Tester", "display name for the token")
	secret := flag.String("secret", "", "JWT secret the server was started with")
	issuer := flag.String("issuer", "", "JWT issuer the server was started with")
	conversation := flag.String("conversation", "", "conversation id to message")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *secret == "" || *conversation == "" {
		return fmt.Errorf("-secret and -conversation are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := auth.GenerateToken(&auth.JWTConfig{
		Secret: []byte(*secret),
		Issuer: *issuer,
		TTL:    *timeout,
	}, *user, *name)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	msgPayload, err := json.Marshal(proto.MsgData{Conversation: *conversation, Text: *text})
	if err != nil {
		return fmt.Errorf("marshal msg: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: msgPayload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	acked := false
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if acked {
				// No more pushed events within the timeout, done.
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch outbound.Type {
		case proto.OutboundTypeError:
			return fmt.Errorf("server error: %s: %s", outbound.Error.Code, outbound.Error.Msg)

		case proto.OutboundTypeAck:
			var ack proto.MsgAck
			if err := json.Unmarshal(outbound.Data, &ack); err != nil {
				return fmt.Errorf("unmarshal ack: %w", err)
			}
			fmt.Printf("Ack: message=%s\n", ack.Message)
			acked = true

		case proto.OutboundTypeEvent:
			switch outbound.Event {
			case core.EventMessage:
				var evt core.MessageEvent
				if err := json.Unmarshal(outbound.Data, &evt); err != nil {
					return fmt.Errorf("unmarshal message event: %w", err)
				}
				fmt.Printf("Message: conversation=%s sender=%s text=%q\n",
					evt.ConversationID, evt.SenderName, evt.Content)
			case core.EventStatus:
				var evt core.StatusEvent
				if err := json.Unmarshal(outbound.Data, &evt); err == nil {
					fmt.Printf("Status: user=%s online=%v\n", evt.UserID, evt.IsOnline)
				}
			case core.EventReadReceipt:
				var evt core.ReadReceiptEvent
				if err := json.Unmarshal(outbound.Data, &evt); err == nil {
					fmt.Printf("Read: message=%s reader=%s\n", evt.MessageID, evt.ReaderID)
				}
			default:
				fmt.Printf("Received outbound: type=%s event=%s\n", outbound.Type, outbound.Event)
			}
		}
	}
}
