package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/prepdeck/prepdeck/internal/providers/capture"
	"github.com/prepdeck/prepdeck/internal/providers/transcribe"
	"github.com/prepdeck/prepdeck/internal/recording"
	"github.com/prepdeck/prepdeck/internal/services"
	"github.com/prepdeck/prepdeck/internal/utils"
)

// WSHandler drives one recording controller per connection: the client streams
// media chunks up and receives live transcript fragments, elapsed-time ticks,
// and per-answer feedback back.
type WSHandler struct {
	svc      services.InterviewService
	capture  capture.Provider
	stt      transcribe.Provider
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(svc services.InterviewService, cap capture.Provider, stt transcribe.Provider, log *logrus.Logger) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	return &WSHandler{
		svc:     svc,
		capture: cap,
		stt:     stt,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type        string `json:"type"` // start|pause|resume|stop|reset|submit|media
	ChunkBase64 string `json:"chunk_base64,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeError(err error) {
	msg := "internal error"
	code := utils.CodeInternal
	if ae, ok := err.(*utils.AppError); ok {
		msg = ae.Message
		code = ae.Code
	}
	_ = w.writeJSON(gin.H{"type": "error", "code": code, "message": msg})
}

// RecordingWS upgrades the connection and runs the recording loop for one
// question at a time until the client disconnects.
func (h *WSHandler) RecordingWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.RecordingWS", "missing session_id", nil))
		return
	}

	// authorize session ownership
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "WSHandler.RecordingWS", "forbidden", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctrl := recording.NewController(h.capture, h.stt, recording.Options{
		OnFragment: func(f transcribe.Fragment) {
			_ = wc.writeJSON(gin.H{"type": "transcript", "text": f.Text, "is_final": f.IsFinal})
		},
	}, h.log)
	defer ctrl.Reset()

	ctx := c.Request.Context()

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// pending holds the last finalized tuple until the store accepts it, so a
	// persistence failure is retryable with another submit instead of losing
	// the recording.
	var pending *recording.Result

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if mt == websocket.BinaryMessage {
			ctrl.Feed(data)
			continue
		}

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeJSON(gin.H{"type": "error", "code": utils.CodeInvalidArgument, "message": "invalid json"})
			continue
		}

		switch msg.Type {
		case "start":
			if err := ctrl.Start(ctx); err != nil {
				wc.writeError(err)
				continue
			}
			h.ackState(wc, ctrl)

		case "pause":
			ctrl.Pause()
			h.ackState(wc, ctrl)

		case "resume":
			if err := ctrl.Resume(); err != nil {
				wc.writeError(err)
				continue
			}
			h.ackState(wc, ctrl)

		case "stop":
			ctrl.Stop(ctx)
			h.ackState(wc, ctrl)

		case "reset":
			ctrl.Reset()
			pending = nil
			h.ackState(wc, ctrl)

		case "media":
			chunk, derr := base64.StdEncoding.DecodeString(msg.ChunkBase64)
			if derr != nil || len(chunk) == 0 {
				_ = wc.writeJSON(gin.H{"type": "error", "code": utils.CodeInvalidArgument, "message": "chunk_base64 is invalid"})
				continue
			}
			ctrl.Feed(chunk)

		case "submit":
			// a fresh completed recording supersedes a retained tuple; a
			// failed drain with a retained tuple is a retry
			if res, serr := ctrl.Submit(); serr == nil {
				pending = &res
			} else if pending == nil {
				wc.writeError(serr)
				continue
			}
			response, aerr := h.svc.RecordAnswer(ctx, sessionID, services.AnswerInput{
				Transcript:      pending.Transcript,
				DurationSeconds: pending.ElapsedSeconds,
				AudioURL:        pending.AudioURL,
				VideoURL:        pending.VideoURL,
			})
			if aerr != nil {
				wc.writeError(aerr)
				continue
			}
			pending = nil
			_ = wc.writeJSON(gin.H{"type": "feedback", "response": response})
			h.ackState(wc, ctrl)

		default:
			_ = wc.writeJSON(gin.H{"type": "error", "code": utils.CodeInvalidArgument, "message": "unknown message type"})
		}
	}
}

func (h *WSHandler) ackState(wc *wsConn, ctrl *recording.Controller) {
	_ = wc.writeJSON(gin.H{
		"type":            "state",
		"state":           ctrl.State(),
		"elapsed_seconds": ctrl.ElapsedSeconds(),
	})
}
