// Package sandbox runs design-mode rendering contexts. Each context owns a
// parsed slide document and an editor agent, and is driven by exactly one
// goroutine consuming a FIFO mailbox. Nothing outside the context touches its
// document; gestures and commands go in, patches and agent messages come out
// through a Sink.
package sandbox

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/livetemplate/slidestudio/internal/agent"
	"github.com/livetemplate/slidestudio/internal/htmldom"
	"github.com/livetemplate/slidestudio/internal/protocol"
)

// ErrClosed is returned by Open after the renderer was shut down.
var ErrClosed = errors.New("sandbox: renderer closed")

// Sink receives a context's output in the order it was produced.
// Calls for one frame are never concurrent.
type Sink interface {
	Patches(frame string, patches []protocol.Patch)
	AgentMessage(frame string, m protocol.AgentMessage)
}

// Renderer opens rendering contexts that share a sink and agent options.
type Renderer struct {
	sink  Sink
	opts  agent.Options
	debug bool

	mu       sync.Mutex
	contexts map[string]*Context
	closed   bool
}

// New creates a renderer delivering to sink.
func New(sink Sink, opts agent.Options, debug bool) *Renderer {
	if debug && opts.Logf == nil {
		opts.Logf = func(format string, args ...any) {
			log.Printf("[Agent] "+format, args...)
		}
	}
	return &Renderer{
		sink:     sink,
		opts:     opts,
		debug:    debug,
		contexts: make(map[string]*Context),
	}
}

// Open parses markup into a fresh document, mounts the agent and starts the
// context's mailbox loop. The frame id tags every message the context emits.
func (r *Renderer) Open(frame, markup string) (*Context, error) {
	doc, err := htmldom.Parse(markup)
	if err != nil {
		return nil, fmt.Errorf("sandbox: parse frame %s: %w", frame, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if old, ok := r.contexts[frame]; ok {
		old.Close()
	}

	c := &Context{
		id:    frame,
		doc:   doc,
		sink:  r.sink,
		debug: r.debug,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	c.agent = agent.New(doc, agent.OutboxFunc(c.collect), r.opts)
	// Mounting the overlay is not journaled; drain anything parsing left.
	doc.Drain()
	r.contexts[frame] = c

	go c.run(func() {
		r.mu.Lock()
		if r.contexts[frame] == c {
			delete(r.contexts, frame)
		}
		r.mu.Unlock()
	})

	if r.debug {
		log.Printf("[Frame] Opened %s", frame)
	}
	return c, nil
}

// Count reports the number of live contexts.
func (r *Renderer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// Close closes every live context and refuses further opens.
func (r *Renderer) Close() {
	r.mu.Lock()
	r.closed = true
	live := make([]*Context, 0, len(r.contexts))
	for _, c := range r.contexts {
		live = append(live, c)
	}
	r.mu.Unlock()

	for _, c := range live {
		c.Close()
	}
}

// item is one mailbox entry: a gesture or a command.
type item struct {
	gesture protocol.Gesture
	command protocol.Command
}

// Context is one isolated rendering context.
type Context struct {
	id    string
	doc   *htmldom.Document
	agent *agent.Agent
	sink  Sink
	debug bool

	mu     sync.Mutex
	queue  []item
	closed bool
	wake   chan struct{}
	done   chan struct{}

	// outbox is only touched by the loop goroutine.
	outbox []protocol.AgentMessage
}

// ID returns the frame id.
func (c *Context) ID() string { return c.id }

// Gesture enqueues a bridge gesture. It is a no-op once the context closed.
func (c *Context) Gesture(g protocol.Gesture) {
	c.post(item{gesture: g})
}

// Send enqueues a host command. It is a no-op once the context closed.
func (c *Context) Send(cmd protocol.Command) {
	c.post(item{command: cmd})
}

func (c *Context) post(it item) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if c.debug {
			log.Printf("[Frame] %s closed, dropping message", c.id)
		}
		return
	}
	c.queue = append(c.queue, it)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Close tears the context down. Queued items that have not started are
// discarded; the agent's selection, hover and drag go with it. Close does
// not wait for the loop; use Done for that.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.queue = nil
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Done is closed once the loop has exited.
func (c *Context) Done() <-chan struct{} { return c.done }

func (c *Context) run(exit func()) {
	defer close(c.done)
	defer exit()

	for range c.wake {
		for {
			it, ok := c.next()
			if !ok {
				break
			}
			c.handle(it)
		}
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			c.agent.Close()
			if c.debug {
				log.Printf("[Frame] Closed %s", c.id)
			}
			return
		}
	}
}

func (c *Context) next() (item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queue) == 0 {
		return item{}, false
	}
	it := c.queue[0]
	c.queue[0] = item{}
	c.queue = c.queue[1:]
	return it, true
}

func (c *Context) handle(it item) {
	switch {
	case it.gesture != nil:
		switch g := it.gesture.(type) {
		case protocol.Measure:
			c.doc.Measure(g.Rects)
			c.agent.Redraw()
		case protocol.Viewport:
			c.doc.SetViewport(g.W, g.H)
			c.agent.HandleGesture(g)
		default:
			c.agent.HandleGesture(g)
		}
	case it.command != nil:
		c.agent.HandleCommand(it.command)
	}
	c.flush()
}

func (c *Context) collect(m protocol.AgentMessage) {
	c.outbox = append(c.outbox, m)
}

// flush delivers the item's patches before its agent messages so the browser
// DOM is current when the host reacts to a selection report.
func (c *Context) flush() {
	if patches := c.doc.Drain(); len(patches) > 0 {
		c.sink.Patches(c.id, patches)
	}
	msgs := c.outbox
	c.outbox = nil
	for _, m := range msgs {
		c.sink.AgentMessage(c.id, m)
	}
}
