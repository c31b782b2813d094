package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"roomrelay/internal/auth"
	"roomrelay/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be < pongWait
	maxMessageSize = 64 * 1024
	dispatchWait   = 1900 * time.Millisecond
)

type WsServer struct {
	ctrl      *relay.Controller
	router    *Router
	upgrader  websocket.Upgrader
	queueSize int
}

// NewWsServer accepts browser connections from allowedOrigin only; requests
// without an Origin header (native clients) are always accepted. "*" allows
// every origin.
func NewWsServer(ctrl *relay.Controller, allowedOrigin string, queueSize int) *WsServer {
	if queueSize <= 0 {
		queueSize = 256
	}
	srv := &WsServer{
		ctrl:      ctrl,
		router:    NewRouter(),
		queueSize: queueSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

// Handle godoc
// @Summary      Open a relay connection
// @Description  Upgrades to a websocket. The bearer token is read from the Authorization header or the token query parameter.
// @Tags         relay
// @Param        token  query  string  false  "JWT when headers cannot be set"
// @Success      101
// @Router       /ws [get]
func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	conn := newClientConn(rawConn, s.queueSize)
	session, err := s.ctrl.Open(ginCtx.Request.Context(), conn, relay.Handshake{
		Token:      auth.BearerToken(ginCtx.Request),
		RemoteAddr: ginCtx.ClientIP(),
	})
	if err != nil {
		_ = rawConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, relay.ErrAuthFailure.Error()),
			time.Now().Add(writeWait))
		_ = rawConn.Close()
		return
	}

	go conn.writePump()
	go s.reader(session, conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 join-room -------------------------------------------------------------
	Register(
		s.router,
		EventJoinRoom,
		func(_ context.Context, cc *ConnContext, req JoinRoomRequest) (JoinRoomAck, error) {
			members, err := cc.Session.Join(req.RoomID, req.Identity)
			if err != nil {
				return JoinRoomAck{}, err
			}
			return JoinRoomAck{
				RoomID:       req.RoomID,
				ConnectionID: cc.Session.ID(),
				Members:      members,
			}, nil
		},
	)

	// 🔹 leave-room ------------------------------------------------------------
	Register(
		s.router,
		EventLeaveRoom,
		func(_ context.Context, cc *ConnContext, req LeaveRoomRequest) (AckBody, error) {
			return AckBody{}, cc.Session.Leave(req.RoomID)
		},
	)

	// 🔹 send-chat -------------------------------------------------------------
	Register(
		s.router,
		EventSendChat,
		func(_ context.Context, cc *ConnContext, req SendChatRequest) (SendChatAck, error) {
			msg, err := cc.Session.SendChat(req.RoomID, req.Text)
			if err != nil {
				return SendChatAck{}, err
			}
			return SendChatAck{RoomID: msg.RoomID, ServerTimestamp: msg.ServerTimestamp}, nil
		},
	)

	// 🔹 send-signal -----------------------------------------------------------
	Register(
		s.router,
		EventSendSignal,
		func(_ context.Context, cc *ConnContext, req SendSignalRequest) (SendSignalAck, error) {
			if req.TargetConnectionID != "" {
				if err := cc.Session.SendSignalTo(req.TargetConnectionID, req.Payload); err != nil {
					return SendSignalAck{}, err
				}
				return SendSignalAck{Delivered: 1}, nil
			}
			n, err := cc.Session.SendSignal(req.TargetIdentity, req.Payload)
			return SendSignalAck{Delivered: n}, err
		},
	)
}

func (s *WsServer) reader(session *relay.Session, conn *clientConn) {
	defer session.Close()

	conn.rawConn.SetReadLimit(maxMessageSize)
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{Session: session}

	for {
		var env relay.Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn_id", string(session.ID())), zap.Error(err))
			}
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchWait)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = session.Reply(relay.EventError, relay.ErrorBody{Event: env.Event, Error: err.Error()})
			if errors.Is(err, relay.ErrSessionClosed) {
				return
			}
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		_ = session.Reply(env.Event+"-ack", res)
	}
}
