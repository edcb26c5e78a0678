package chat

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ChatWave/logger"
	"ChatWave/tools/errs"
	"ChatWave/tools/ids"
	"ChatWave/tools/safe"
)

const maxFrameBytes = 64 * 1024

// origin policy is enforced by the gin middleware in front of this handler
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection to completion:
// authenticate, register, read frames, reconcile state on exit.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed: %v", err)
		return
	}

	sess, err := s.authenticate(c.Request, ws)
	if err != nil {
		logger.Infof("[ws] auth failed remote=%s err=%v", ws.RemoteAddr(), err)
		_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = ws.WriteMessage(websocket.TextMessage, buildError(err))
		_ = ws.Close()
		return
	}

	client := newClient(sess, ws, s.cfg.SendQueueSize)

	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	safe.Go(func() { client.writePump(s.cfg.PingInterval) })
	s.register(client)
	logger.Infof("[ws] connected conn=%s user=%s", sess.ConnID, sess.UserID)

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", sess.ConnID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s", sess.ConnID)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", sess.ConnID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", sess.ConnID, perr, sample)
			client.enqueue(buildError(errs.ErrArgs.WrapMsg("malformed frame")))
			continue
		}
		s.handleFrame(client, frame)
	}

	s.unregister(client)
	logger.Infof("[ws] disconnected conn=%s user=%s", sess.ConnID, sess.UserID)
}

// authenticate resolves the session identity before any other handler runs.
// The token comes from the `token` query parameter or bearer header; failing
// that, the first frame must be an auth frame, read under a bounded deadline
// so unauthenticated connections cannot pile up.
func (s *Server) authenticate(r *http.Request, ws *websocket.Conn) (*Session, error) {
	token := bearerToken(r)
	if token == "" {
		var err error
		token, err = s.readAuthFrame(ws)
		if err != nil {
			return nil, err
		}
	}
	ident, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	return &Session{
		ConnID:      ids.GenerateString(),
		UserID:      ident.ID,
		DisplayName: ident.DisplayName,
		Avatar:      ident.Avatar,
		AuthedAt:    time.Now(),
	}, nil
}

func (s *Server) readAuthFrame(ws *websocket.Conn) (string, error) {
	if err := ws.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
		return "", errs.ErrAuthentication.WrapMsg("set handshake deadline")
	}
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return "", errs.ErrAuthentication.WrapMsg("no auth frame before deadline")
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		frame, err := ParseFrameJSON(data)
		if err != nil {
			return "", errs.ErrAuthentication.WrapMsg("malformed auth frame")
		}
		if frame.Type != FrameAuth {
			return "", errs.ErrAuthentication.WrapMsg("first frame must be auth",
				"got", frame.Type)
		}
		p, err := payloadOf[AuthPayload](frame)
		if err != nil {
			return "", errs.ErrAuthentication.WrapMsg("bad auth payload")
		}
		return p.Token, nil
	}
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
