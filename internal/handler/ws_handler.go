package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/middleware"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
	ws "github.com/stemsi/exprep-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the practice session and accepts session actions.
type WSHandler struct {
	practice *service.PracticeService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(practice *service.PracticeService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		practice: practice,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream?token=...
// Attaches a viewer to the user's session. The countdown runs while at least
// one stream is open.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	uid := claims.UserID

	// Attach before upgrading so a missing session is a plain HTTP error.
	viewer, err := h.practice.Attach(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.practice.Detach(viewer)
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	wsLog := h.log.With().Int64("user_id", uid).Logger()
	wsLog.Info().Msg("Session stream connected")

	out := make(chan any, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, viewer, out, wsLog)
	}()

	h.readLoop(ctx, conn, uid, out, wsLog)

	cancel()
	h.practice.Detach(viewer)
	<-writerDone
	wsLog.Info().Msg("Session stream closed")
}

// readLoop dispatches client actions until the connection fails.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, uid int64, out chan<- any, log zerolog.Logger) {
	ws.Prepare(conn)

	reply := func(v any) {
		select {
		case out <- v:
		case <-ctx.Done():
		}
	}

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Err(err).Msg("Connection closed")
			}
			return
		}

		if msg.Action == ws.ActionPing {
			reply(ws.PongResponse{Event: ws.EventPong})
			continue
		}
		if msg.Action == ws.ActionSubmit {
			// Submission can take a while; the outcome arrives as an event.
			go func() {
				if _, err := h.practice.Submit(ctx, uid); err != nil && !errors.Is(err, service.ErrSubmissionFailed) && ctx.Err() == nil {
					reply(h.errorEvent(ctx, msg.Action, err))
				}
			}()
			continue
		}

		// Successful actions are answered by the state event every viewer gets.
		if err := h.dispatch(ctx, uid, &msg); err != nil {
			reply(h.errorEvent(ctx, msg.Action, err))
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, uid int64, msg *ws.Request) error {
	var err error
	switch msg.Action {
	case ws.ActionSelect:
		_, err = h.practice.SelectAnswer(ctx, uid, msg.QuestionID, msg.Answer)
	case ws.ActionClear:
		_, err = h.practice.ClearAnswer(ctx, uid, msg.QuestionID)
	case ws.ActionMark:
		_, err = h.practice.ToggleMark(ctx, uid, msg.QuestionID)
	case ws.ActionGoto:
		_, err = h.practice.Navigate(ctx, uid, &model.NavigateRequest{Action: "goto", Index: msg.Index})
	case ws.ActionNext:
		_, err = h.practice.Navigate(ctx, uid, &model.NavigateRequest{Action: "next"})
	case ws.ActionPrevious:
		_, err = h.practice.Navigate(ctx, uid, &model.NavigateRequest{Action: "previous"})
	case ws.ActionPause:
		_, err = h.practice.Pause(ctx, uid)
	case ws.ActionResume:
		_, err = h.practice.Resume(ctx, uid)
	default:
		return errUnknownAction
	}
	return err
}

var errUnknownAction = errors.New("unknown action")

func (h *WSHandler) errorEvent(ctx context.Context, action ws.Action, err error) ws.ErrorResponse {
	code := response.ErrInvalidPayload
	if !errors.Is(err, errUnknownAction) {
		_, code = errorStatus(err)
	}
	body := response.NewErrorBody(ctx, code)
	return ws.ErrorResponse{Event: ws.EventError, Action: action, Code: string(body.Code), Error: body.Message}
}

// writeLoop is the only goroutine writing to conn.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, viewer *service.Viewer, out <-chan any, log zerolog.Logger) {
	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()
	// Closing the connection unblocks the reader.
	defer conn.Close()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-viewer.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(ws.WriteWait))
				return
			}
			err = ws.WriteTyped(conn, h.eventPayload(ctx, ev))
		case v := <-out:
			err = ws.WriteTyped(conn, v)
		case <-ping.C:
			err = ws.WritePing(conn)
		}
		if err != nil {
			log.Debug().Err(err).Msg("Write failed")
			return
		}
	}
}

func (h *WSHandler) eventPayload(ctx context.Context, ev service.SessionEvent) any {
	switch ev.Kind {
	case service.EventTick:
		return ws.TickResponse{Event: ws.EventTick, Timer: ev.Tick}
	case service.EventTimeUp:
		return ws.TickResponse{Event: ws.EventTimeUp, Timer: ev.Tick}
	case service.EventSubmitted:
		return ws.SubmittedResponse{Event: ws.EventSubmitted, Result: ev.Result}
	case service.EventSubmitFailed:
		return ws.SubmitFailedResponse{
			Event:   ws.EventSubmitFailed,
			Error:   response.GetMessage(ctx, response.ErrSubmissionFailed),
			Session: ev.Session,
		}
	default:
		if ev.Session == nil {
			return ws.StateResponse{Event: ws.EventState}
		}
		return ws.StateResponse{Event: ws.EventState, Session: ev.Session}
	}
}
