package ws

import (
	"context"
	"encoding/json"
	"time"

	"pratham-chat/backend/internal/notice"
	"pratham-chat/backend/internal/scope"
	"pratham-chat/backend/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Time allowed for release hooks when a screen closes
	releaseTimeout = 5 * time.Second
)

// Client is one open chat screen. Its scope owns the notice timers and,
// once the screen starts recording or playing, the audio stream; both are
// released when the connection ends.
type Client struct {
	id     string
	roomID string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	scope  *scope.Scope
	board  *notice.Board
	log    *logger.Logger

	// holdsAudio is only touched by readPump
	holdsAudio bool
}

func (c *Client) deliver(frameType string, data any) {
	payload, err := encode(frameType, data)
	if err != nil {
		c.log.LogError(err, "Failed to encode frame", "type", frameType)
		return
	}
	c.hub.publish(envelope{client: c, data: payload})
}

func (c *Client) onNotice(ev notice.Event) {
	if ev.Type == notice.EventPosted {
		c.hub.metrics.Notice(ev.Notice.Code)
	}
	c.deliver(string(ev.Type), ev.Notice)
}

// close ends the screen: timers are canceled and the audio stream released
func (c *Client) close() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := c.scope.Close(ctx); err != nil {
		c.log.LogError(err, "Failed to release chat screen")
	}
	c.conn.Close()
}

// acquireAudio ties the audio stream to this screen's scope. On close the
// stream is released only if it still belongs to the screen's room.
func (c *Client) acquireAudio() {
	if c.holdsAudio {
		return
	}
	err := c.scope.OnRelease(func(ctx context.Context) error {
		return c.hub.audio.ReleaseRoom(ctx, c.roomID)
	})
	if err != nil {
		c.log.LogError(err, "Failed to tie audio stream to chat screen")
		return
	}
	c.holdsAudio = true
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("WebSocket read error", "error", err.Error())
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.deliver(TypeError, map[string]string{"message": "invalid frame"})
			continue
		}
		c.handle(frame)
	}
}

// handle runs one screen action. Failures the user should see become notices.
func (c *Client) handle(frame Frame) {
	ctx := c.scope.Context()
	var err error

	switch frame.Type {
	case ActionPing:
		c.deliver(TypePong, nil)
		return

	case ActionSend:
		var d sendData
		if err = json.Unmarshal(frame.Data, &d); err == nil {
			_, err = c.hub.chat.SendText(ctx, c.roomID, c.userID, d.Text, d.ReplyTo)
		}

	case ActionDelete:
		var d deleteData
		if err = json.Unmarshal(frame.Data, &d); err == nil {
			if err = c.hub.chat.DeleteMessage(ctx, c.roomID, d.MessageID); err == nil {
				c.board.Post(notice.CodeMessageDeleted, "Message deleted")
			}
		}

	case ActionRecord:
		if err = c.hub.audio.StartRecording(ctx, c.roomID); err == nil {
			c.acquireAudio()
		}

	case ActionRecordStop:
		_, err = c.hub.audio.StopRecording(ctx, c.roomID, c.userID)

	case ActionPlay:
		var d playData
		if err = json.Unmarshal(frame.Data, &d); err == nil {
			if err = c.hub.audio.Play(ctx, c.roomID, d.MessageID, d.OffsetMs); err == nil {
				c.acquireAudio()
			}
		}

	case ActionSeek:
		var d playData
		if err = json.Unmarshal(frame.Data, &d); err == nil {
			if err = c.hub.audio.Seek(ctx, c.roomID, d.MessageID, d.PositionMs); err == nil {
				c.acquireAudio()
			}
		}

	case ActionStop:
		err = c.hub.audio.Stop(ctx)

	case ActionDismissNotice:
		var d dismissData
		if err = json.Unmarshal(frame.Data, &d); err == nil {
			c.board.Dismiss(d.ID)
		}

	default:
		c.deliver(TypeError, map[string]string{"message": "unknown frame type " + frame.Type})
		return
	}

	if err == nil {
		return
	}
	if _, posted := c.board.PostError(err); !posted {
		c.log.Debug("Screen action failed", "type", frame.Type, "error", err.Error())
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Send any queued messages as separate frames
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
