package handlers

import (
	"net/http"
	"time"

	"github.com/aiforge/aiforge/internal/gateway"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token auth already gates the endpoint; browser clients connect from
	// arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamHandler exposes generation over a WebSocket. Each text message from
// the client starts one generation; chunks stream back as text frames, with
// "[DONE]" marking success and "[ERROR] ..." marking failure.
type StreamHandler struct {
	gw *gateway.Gateway
}

// NewStreamHandler constructs a StreamHandler.
func NewStreamHandler(gw *gateway.Gateway) *StreamHandler {
	return &StreamHandler{gw: gw}
}

// streamRequest defines one generation request frame.
type streamRequest struct {
	Prompt      string   `json:"prompt"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	JSONMode    bool     `json:"json_mode"`
}

// Stream upgrades the connection and serves generation requests until the
// client disconnects.
func (h *StreamHandler) Stream(c *gin.Context) {
	userID := getUserID(c)

	conn, errUpgrade := upgrader.Upgrade(c.Writer, c.Request, nil)
	if errUpgrade != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}
	defer conn.Close()

	for {
		var frame streamRequest
		if errRead := conn.ReadJSON(&frame); errRead != nil {
			if websocket.IsUnexpectedCloseError(errRead, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(errRead).Debug("websocket read failed")
			}
			return
		}

		req := gateway.Request{
			Prompt:      frame.Prompt,
			Provider:    frame.Provider,
			Model:       frame.Model,
			Temperature: frame.Temperature,
			MaxTokens:   frame.MaxTokens,
			JSONMode:    frame.JSONMode,
			UserID:      &userID,
			Endpoint:    "/ai/stream",
		}
		if !h.serveOne(c, conn, req) {
			return
		}
	}
}

// serveOne runs a single generation and relays it over conn. It returns
// false when the connection is no longer writable.
func (h *StreamHandler) serveOne(c *gin.Context, conn *websocket.Conn, req gateway.Request) bool {
	chunks, errStart := h.gw.StreamGenerate(c.Request.Context(), req)
	if errStart != nil {
		gateway.LogAttempt(req, req.Provider, errStart)
		return writeFrame(conn, "[ERROR] "+errStart.Error())
	}

	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			gateway.LogAttempt(req, req.Provider, chunk.Err)
			if !writeFrame(conn, "[ERROR] "+chunk.Err.Error()) {
				return false
			}
		case chunk.Done:
			gateway.LogAttempt(req, req.Provider, nil)
			if !writeFrame(conn, "[DONE]") {
				return false
			}
		default:
			if !writeFrame(conn, chunk.Content) {
				// Drain so the gateway goroutine can finish accounting.
				for range chunks {
				}
				return false
			}
		}
	}
	return true
}

func writeFrame(conn *websocket.Conn, payload string) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if errWrite := conn.WriteMessage(websocket.TextMessage, []byte(payload)); errWrite != nil {
		log.WithError(errWrite).Debug("websocket write failed")
		return false
	}
	return true
}
