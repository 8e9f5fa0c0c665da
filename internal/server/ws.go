package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"defi-strategy-lab/internal/domain"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage is one frame of the progress stream. Type is "progress" while
// the run executes, then one of "completed", "stopped" or "failed".
type wsMessage struct {
	Type     string        `json:"type"`
	Progress *ProgressDTO  `json:"progress,omitempty"`
	Result   *RunResultDTO `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// StreamProgress upgrades the connection and streams progress events until
// the run finishes, then sends a final frame with the result and closes.
// Subscribing to a finished run yields the final frame immediately.
func (h *Handler) StreamProgress(c echo.Context) error {
	run, ok := h.registry.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown run " + c.Param("id")})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}
	defer conn.Close()

	events, cancelSub := run.Subscribe()
	defer cancelSub()

	// Reader goroutine: consumes control frames and detects disconnects.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if p := run.Latest(); p != nil {
		if err := writeFrame(conn, wsMessage{Type: "progress", Progress: progressDTO(*p)}); err != nil {
			return nil
		}
	}

	for {
		select {
		case <-clientGone:
			return nil
		case p, open := <-events:
			if !open {
				h.writeFinalFrame(conn, run)
				return nil
			}
			if err := writeFrame(conn, wsMessage{Type: "progress", Progress: progressDTO(p)}); err != nil {
				return nil
			}
		}
	}
}

// writeFinalFrame sends the run's outcome and a normal close frame.
func (h *Handler) writeFinalFrame(conn *websocket.Conn, run *Run) {
	result, err := run.Result()

	msg := wsMessage{Type: string(run.Status())}
	if err != nil {
		msg.Type = string(domain.RunFailed)
		msg.Error = err.Error()
	} else if result != nil {
		msg.Result = runResultDTO(result)
	}
	if werr := writeFrame(conn, msg); werr != nil {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func writeFrame(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}
