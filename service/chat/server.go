package chat

import (
	"context"
	"time"

	"ChatWave/logger"
	"ChatWave/tools/errs"
)

// Config tunes the gateway. Zero values are normalized to sane defaults.
type Config struct {
	NodeID           string
	SendQueueSize    int
	FanoutWorkers    int
	FanoutQueue      int
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	// FrameTimeout bounds the external I/O (membership check, persistence)
	// a single inbound frame may spend.
	FrameTimeout time.Duration
}

func (c *Config) norm() {
	if c.NodeID == "" {
		c.NodeID = "gw-1"
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 4
	}
	if c.FanoutQueue <= 0 {
		c.FanoutQueue = 1024
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 75 * time.Second
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = 10 * time.Second
	}
}

// Server owns the realtime core: presence registry, broadcast groups, typing
// sets, and the message pipeline. All state is process-local and starts
// empty; reconnecting clients rebuild it.
type Server struct {
	cfg      Config
	verifier TokenVerifier

	registry *Registry
	rooms    *Rooms
	typing   *Typing
	fanout   *Fanout
	pipeline *Pipeline

	presence PresenceMirror // optional
	relay    EventRelay     // optional
}

type Option func(*Server)

func WithPresenceMirror(m PresenceMirror) Option {
	return func(s *Server) { s.presence = m }
}

func WithEventRelay(r EventRelay) Option {
	return func(s *Server) { s.relay = r }
}

func NewServer(cfg Config, verifier TokenVerifier, members MembershipChecker, store MessageStore, opts ...Option) *Server {
	cfg.norm()
	s := &Server{
		cfg:      cfg,
		verifier: verifier,
		registry: NewRegistry(),
		rooms:    NewRooms(members),
		typing:   NewTyping(),
		fanout:   NewFanout(cfg.FanoutWorkers, cfg.FanoutQueue),
	}
	s.pipeline = NewPipeline(store, members, s.rooms, s.fanout)
	for _, opt := range opts {
		opt(s)
	}
	if s.relay != nil {
		s.pipeline.SetRelay(s.relay)
	}
	return s
}

// Registry exposes presence reads (IsOnline/ListOnline) to the REST layer.
func (s *Server) Registry() *Registry { return s.registry }

// Close tears the gateway down: every live connection is closed and the
// fan-out pool drained.
func (s *Server) Close() {
	for _, c := range s.registry.Snapshot() {
		c.close()
	}
	s.fanout.Close()
}

// ---- connection lifecycle ----

func (s *Server) register(c *Client) {
	becameOnline := s.registry.Register(c)
	c.enqueue(buildConnected(c.Session))
	if !becameOnline {
		return
	}
	s.broadcastPresence(c.Session.UserID, true)
	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.presence.Online(ctx, c.Session.UserID)
		cancel()
	}
}

func (s *Server) unregister(c *Client) {
	c.close()
	left := s.rooms.LeaveAll(c.Session.ConnID)

	sess, becameOffline := s.registry.Unregister(c.Session.ConnID)
	if sess == nil {
		return
	}

	// a typing flag must not outlive the user's last connection in the room,
	// even while other tabs keep the user online elsewhere
	for _, conversationID := range left {
		if s.rooms.UserJoined(conversationID, sess.UserID) {
			continue
		}
		if s.typing.Stop(conversationID, sess.UserID) {
			s.broadcastTyping(conversationID, sess.UserID, false)
		}
	}

	if !becameOffline {
		return
	}

	// the user is fully gone: no typing indicator may survive them
	for _, conversationID := range s.typing.Disconnect(sess.UserID) {
		s.broadcastTyping(conversationID, sess.UserID, false)
	}
	s.broadcastPresence(sess.UserID, false)
	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.presence.Offline(ctx, sess.UserID)
		cancel()
	}
}

// ---- frame dispatch ----

func (s *Server) handleFrame(c *Client, f *Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FrameTimeout)
	defer cancel()

	var err error
	switch f.Type {
	case FrameAuth:
		// already authenticated, a repeat auth frame is a no-op
	case FrameJoin:
		err = s.handleJoin(ctx, c, f)
	case FrameLeave:
		err = s.handleLeave(c, f)
	case FrameMessageSend:
		err = s.handleSend(ctx, c, f)
	case FrameMessageEdit:
		err = s.handleEdit(ctx, c, f)
	case FrameMessageDelete:
		err = s.handleDelete(ctx, c, f)
	case FrameTypingStart:
		err = s.handleTyping(c, f, true)
	case FrameTypingStop:
		err = s.handleTyping(c, f, false)
	default:
		err = errs.ErrArgs.WrapMsg("unknown frame type", "type", f.Type)
	}
	if err != nil {
		logger.Infof("[server] frame rejected type=%s conn=%s err=%v",
			f.Type, c.Session.ConnID, err)
		c.enqueue(buildError(err))
	}
}

func (s *Server) handleJoin(ctx context.Context, c *Client, f *Frame) error {
	p, err := payloadOf[JoinPayload](f)
	if err != nil {
		return err
	}
	return s.rooms.Join(ctx, c, p.ConversationID)
}

func (s *Server) handleLeave(c *Client, f *Frame) error {
	p, err := payloadOf[JoinPayload](f)
	if err != nil {
		return err
	}
	s.rooms.Leave(c.Session.ConnID, p.ConversationID)
	// leaving while typing must not leave a stale indicator behind
	if s.typing.Stop(p.ConversationID, c.Session.UserID) {
		s.broadcastTyping(p.ConversationID, c.Session.UserID, false)
	}
	return nil
}

func (s *Server) handleSend(ctx context.Context, c *Client, f *Frame) error {
	p, err := payloadOf[SendPayload](f)
	if err != nil {
		return err
	}
	_, err = s.pipeline.Send(ctx, c.Session, p.ConversationID, p.Content, MessageType(p.Type))
	return err
}

func (s *Server) handleEdit(ctx context.Context, c *Client, f *Frame) error {
	p, err := payloadOf[EditPayload](f)
	if err != nil {
		return err
	}
	_, err = s.pipeline.Edit(ctx, c.Session, p.MessageID, p.Content)
	return err
}

func (s *Server) handleDelete(ctx context.Context, c *Client, f *Frame) error {
	p, err := payloadOf[DeletePayload](f)
	if err != nil {
		return err
	}
	_, err = s.pipeline.Delete(ctx, c.Session, p.MessageID)
	return err
}

func (s *Server) handleTyping(c *Client, f *Frame, start bool) error {
	p, err := payloadOf[TypingPayload](f)
	if err != nil {
		return err
	}
	if p.ConversationID == "" {
		return errs.ErrArgs.WrapMsg("empty conversationId")
	}
	if start {
		if !s.rooms.Contains(p.ConversationID, c.Session.ConnID) {
			return errs.ErrNotAuthorized.WrapMsg("typing in a room not joined",
				"conversation", p.ConversationID)
		}
		if s.typing.Start(p.ConversationID, c.Session.UserID) {
			s.broadcastTyping(p.ConversationID, c.Session.UserID, true)
		}
		return nil
	}
	if s.typing.Stop(p.ConversationID, c.Session.UserID) {
		s.broadcastTyping(p.ConversationID, c.Session.UserID, false)
	}
	return nil
}

// ---- broadcasts ----

// broadcastTyping notifies the conversation's joined connections, except the
// typing user's own.
func (s *Server) broadcastTyping(conversationID, userID string, isTyping bool) {
	members := s.rooms.MembersOf(conversationID)
	targets := members[:0:0]
	for _, m := range members {
		if m.Session.UserID != userID {
			targets = append(targets, m)
		}
	}
	payload := buildTyping(conversationID, userID, isTyping)
	s.fanout.Broadcast(conversationID, targets, payload)
	if s.relay != nil {
		s.relay.Publish(conversationID, payload)
	}
}

// broadcastPresence notifies every other user's connections of an
// online/offline transition. It fires at most once per actual transition
// because the registry only reports the first/last connection.
func (s *Server) broadcastPresence(userID string, online bool) {
	all := s.registry.Snapshot()
	targets := all[:0:0]
	for _, c := range all {
		if c.Session.UserID != userID {
			targets = append(targets, c)
		}
	}
	s.fanout.Broadcast(userID, targets, buildPresence(userID, online))
}
