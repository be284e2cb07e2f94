package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livetemplate/slidestudio/internal/agent"
	"github.com/livetemplate/slidestudio/internal/host"
	"github.com/livetemplate/slidestudio/internal/protocol"
	"github.com/livetemplate/slidestudio/internal/sandbox"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20 // slide documents travel on the code channel
	outboxSize     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts browsers on this host and non-browser clients.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Session is one studio tab: a websocket, the host controller driving the
// tab's slide frame, and the rendering contexts it opens.
type Session struct {
	studio *Studio
	conn   *websocket.Conn
	ctrl   *host.Controller
	render *sandbox.Renderer
	debug  bool

	out  chan []byte
	done chan struct{}
	once sync.Once

	// Deck changes are queued without bound so the studio never waits on
	// a session whose controller is busy.
	mu      sync.Mutex
	pending []change
	wake    chan struct{}
}

// SessionOptions configures new sessions.
type SessionOptions struct {
	EmitDuringDrag bool
	Debug          bool
}

func newSession(st *Studio, conn *websocket.Conn, opts SessionOptions) *Session {
	s := &Session{
		studio: st,
		conn:   conn,
		debug:  opts.Debug,
		out:    make(chan []byte, outboxSize),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	s.render = sandbox.New(s, agent.Options{EmitDuringDrag: opts.EmitDuringDrag}, opts.Debug)
	s.ctrl = host.New(host.RendererFunc(s.openFrame), s, s, host.Options{Debug: opts.Debug, Locks: s})
	return s
}

func (s *Session) openFrame(frameID, markup string) (host.Frame, error) {
	c, err := s.render.Open(frameID, markup)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// serve runs the session until the socket closes.
func (s *Session) serve() {
	defer s.close()
	go s.writeLoop()
	go s.eventLoop()

	view, first := s.studio.attach(s)
	s.write(protocol.ChannelDeck, "", view)
	if err := s.ctrl.SwitchSlide(first); err != nil {
		log.Printf("[WS] Failed to open slide %s: %v", first, err)
	}
	s.readLoop()
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		s.studio.detach(s)
		s.ctrl.Close()
		s.render.Close()
		s.conn.Close()
		if s.debug {
			log.Printf("[WS] Session closed")
		}
	})
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.fail(err)
			continue
		}
		if err := s.dispatch(env); err != nil {
			s.fail(err)
		}
	}
}

func (s *Session) dispatch(env protocol.Envelope) error {
	switch env.Channel {
	case protocol.ChannelGesture:
		g, err := protocol.DecodeGesture(env.Data)
		if err != nil {
			return err
		}
		s.ctrl.Gesture(env.Frame, g)
		return nil

	case protocol.ChannelControl:
		var c protocol.Control
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return err
		}
		return s.ctrl.Control(c.Name, c.Value)

	case protocol.ChannelCode:
		var c protocol.CodeView
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return err
		}
		if c.Slide != s.ctrl.Slide() {
			return nil
		}
		return s.ctrl.EditCode(c.Code)

	case protocol.ChannelMode:
		var m struct {
			Design bool `json:"design"`
		}
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return err
		}
		return s.ctrl.SetDesignMode(m.Design)

	case protocol.ChannelSlide:
		var m struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return err
		}
		if _, err := s.studio.Slide(m.ID); err != nil {
			return err
		}
		return s.ctrl.SwitchSlide(m.ID)
	}
	if s.debug {
		log.Printf("[WS] Ignoring message on channel %q", env.Channel)
	}
	return nil
}

func (s *Session) fail(err error) {
	if s.debug {
		log.Printf("[WS] Request rejected: %v", err)
	}
	if errors.Is(err, host.ErrNoSelection) {
		// Panel input racing a deselect; nothing to tell the user.
		return
	}
	s.write(protocol.ChannelError, "", map[string]string{"error": err.Error()})
}

// write queues an envelope. A client that stops reading is disconnected.
func (s *Session) write(ch protocol.Channel, frame string, v any) {
	env, err := protocol.NewEnvelope(ch, frame, v)
	if err != nil {
		log.Printf("[WS] Failed to encode %s message: %v", ch, err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[WS] Failed to encode %s envelope: %v", ch, err)
		return
	}
	select {
	case s.out <- data:
	case <-s.done:
	default:
		log.Printf("[WS] Client is not keeping up, closing session")
		go s.close()
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if s.debug {
					log.Printf("[WS] Write error: %v", err)
				}
				go s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				go s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// notify queues a deck change for this session.
func (s *Session) notify(c change) {
	s.mu.Lock()
	s.pending = append(s.pending, c)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) eventLoop() {
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, c := range batch {
			s.apply(c)
		}
	}
}

// apply brings the session in line with a deck change: it shows the new
// outline and reloads or moves the frame when its slide changed or vanished.
func (s *Session) apply(c change) {
	s.write(protocol.ChannelDeck, "", c.view)
	if c.live == nil {
		return
	}
	if c.notice {
		s.write(protocol.ChannelReload, "", struct{}{})
	}

	cur := s.ctrl.Slide()
	var err error
	switch {
	case cur == "":
		return
	case c.moved[cur] != "":
		err = s.ctrl.SwitchSlide(c.moved[cur])
	case !c.live[cur]:
		err = s.ctrl.SwitchSlide(c.first)
	case s == c.origin:
		return
	case c.all || c.reload[cur]:
		err = s.ctrl.Reload()
	}
	if err != nil {
		log.Printf("[WS] Failed to refresh slide %s: %v", cur, err)
	}
}

// Patches implements sandbox.Sink.
func (s *Session) Patches(frame string, patches []protocol.Patch) {
	s.write(protocol.ChannelPatch, frame, patches)
}

// AgentMessage implements sandbox.Sink.
func (s *Session) AgentMessage(frame string, m protocol.AgentMessage) {
	s.ctrl.HandleAgent(frame, m)
}

// LoadFrame implements host.View.
func (s *Session) LoadFrame(frameID string, f protocol.FrameLoad) {
	s.write(protocol.ChannelFrame, frameID, f)
}

// ShowPanel implements host.View.
func (s *Session) ShowPanel(p protocol.PanelView) {
	s.write(protocol.ChannelPanel, "", p)
}

// ShowCode implements host.View.
func (s *Session) ShowCode(c protocol.CodeView) {
	s.write(protocol.ChannelCode, "", c)
}

// Acquire implements host.DesignLocks.
func (s *Session) Acquire(slide string) error {
	return s.studio.claimDesign(s, slide)
}

// Release implements host.DesignLocks.
func (s *Session) Release() {
	s.studio.releaseDesign(s)
}

// CurrentCode implements host.CodeStore.
func (s *Session) CurrentCode(slide string) (string, error) {
	return s.studio.CurrentCode(slide)
}

// SetCurrentCode implements host.CodeStore.
func (s *Session) SetCurrentCode(slide, code string) error {
	return s.studio.SetCode(slide, code, s)
}

func (srv *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	if srv.debug {
		log.Printf("[WS] Session opened from %s", clientAddr(r))
	}
	newSession(srv.studio, conn, srv.sessionOpts).serve()
}
