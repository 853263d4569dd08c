// Package dialog drives the interactive editing sessions: record, list
// and struct editors, the reference selector and the deletion dialog.
// All of them run on one Context, whose layer stack mirrors the nesting of
// the active dialogs and renders it as a breadcrumb trail.
package dialog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/arthur-debert/bookshelf/bookshelf/schema"
)

var (
	// ErrInputClosed is returned when the input ends while a dialog waits
	ErrInputClosed = errors.New("input closed")
	// ErrLayerOrder is returned when a layer other than the top one is
	// updated or finished
	ErrLayerOrder = errors.New("layer is not on top of the stack")
)

// MessageKind classifies a queued message
type MessageKind int

const (
	KindText MessageKind = iota
	KindNote
	KindSuccess
	KindWarning
	KindError
)

// Message is output deferred until the next screen redraw
type Message struct {
	Kind MessageKind
	Text string
}

// Context owns the input and output streams, the store environment, the
// layer stack and the deferred message queue.
type Context struct {
	Env schema.Env

	in     *bufio.Reader
	out    io.Writer
	clear  bool
	plain  bool
	logger *slog.Logger

	layers []*Layer
	queue  []Message
}

// Option configures a Context
type Option func(*Context)

// WithScreenClearing clears the screen on every redraw
func WithScreenClearing(clear bool) Option {
	return func(c *Context) { c.clear = clear }
}

// WithPlainOutput disables message colors
func WithPlainOutput(plain bool) Option {
	return func(c *Context) { c.plain = plain }
}

// WithLogger sets the logger used for dialog events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewContext creates a Context reading from in and writing to out. Screen
// clearing defaults to on when out is a terminal.
func NewContext(in io.Reader, out io.Writer, env schema.Env, opts ...Option) *Context {
	c := &Context{
		Env:    env,
		in:     bufio.NewReader(in),
		out:    out,
		clear:  IsTerminal(out),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Layer is one entry of the breadcrumb stack
type Layer struct {
	ctx    *Context
	label  string
	redraw func()
}

// AddLayer pushes a layer. redraw may be nil.
func (c *Context) AddLayer(label string, redraw func()) *Layer {
	l := &Layer{ctx: c, label: label, redraw: redraw}
	c.layers = append(c.layers, l)
	c.logger.Debug("layer added", "label", label, "depth", len(c.layers))
	return l
}

func (c *Context) top() *Layer {
	if len(c.layers) == 0 {
		return nil
	}
	return c.layers[len(c.layers)-1]
}

// Depth returns the number of active layers
func (c *Context) Depth() int { return len(c.layers) }

// Breadcrumb joins the labels of all layers
func (c *Context) Breadcrumb() string {
	labels := make([]string, len(c.layers))
	for i, l := range c.layers {
		labels[i] = l.label
	}
	return strings.Join(labels, " > ")
}

// Label returns the layer's label
func (l *Layer) Label() string { return l.label }

// Update repaints the screen for this layer. A non-empty label replaces
// the current one.
func (l *Layer) Update(label string) error {
	c := l.ctx
	if c.top() != l {
		return fmt.Errorf("update %q: %w", l.label, ErrLayerOrder)
	}
	if label != "" {
		l.label = label
	}
	if c.clear {
		fmt.Fprint(c.out, "\033[H\033[2J")
	} else {
		fmt.Fprintln(c.out)
	}
	fmt.Fprintln(c.out, c.Breadcrumb())
	fmt.Fprintln(c.out)
	if l.redraw != nil {
		l.redraw()
	}
	c.drain()
	return nil
}

// Finish pops the layer
func (l *Layer) Finish() error {
	c := l.ctx
	if c.top() != l {
		return fmt.Errorf("finish %q: %w", l.label, ErrLayerOrder)
	}
	c.layers = c.layers[:len(c.layers)-1]
	c.logger.Debug("layer finished", "label", l.label, "depth", len(c.layers))
	return nil
}

// WithLayer runs fn inside a new layer and pops it on every exit path.
// Misordered nesting is a programming error and panics.
func (c *Context) WithLayer(label string, redraw func(), fn func(l *Layer) error) error {
	l := c.AddLayer(label, redraw)
	defer func() {
		if err := l.Finish(); err != nil {
			panic(err)
		}
	}()
	return fn(l)
}

// Enqueue defers a message until the next redraw. Without active layers
// it is written immediately.
func (c *Context) Enqueue(m Message) {
	if len(c.layers) == 0 {
		c.write(m)
		return
	}
	c.queue = append(c.queue, m)
}

// Error queues an error message
func (c *Context) Error(format string, args ...any) {
	c.Enqueue(Message{Kind: KindError, Text: fmt.Sprintf(format, args...)})
}

// Warning queues a warning message
func (c *Context) Warning(format string, args ...any) {
	c.Enqueue(Message{Kind: KindWarning, Text: fmt.Sprintf(format, args...)})
}

// Success queues a success message
func (c *Context) Success(format string, args ...any) {
	c.Enqueue(Message{Kind: KindSuccess, Text: fmt.Sprintf(format, args...)})
}

// Note queues a note
func (c *Context) Note(format string, args ...any) {
	c.Enqueue(Message{Kind: KindNote, Text: fmt.Sprintf(format, args...)})
}

// Flush drops all layers and writes any queued messages
func (c *Context) Flush() {
	c.layers = nil
	c.drain()
}

// Pending returns the queued messages
func (c *Context) Pending() []Message { return append([]Message(nil), c.queue...) }

func (c *Context) drain() {
	queue := c.queue
	c.queue = nil
	for _, m := range queue {
		c.write(m)
	}
}

var messageColors = map[MessageKind]*color.Color{
	KindNote:    color.New(color.FgCyan),
	KindSuccess: color.New(color.FgGreen),
	KindWarning: color.New(color.FgYellow),
	KindError:   color.New(color.FgRed, color.Bold),
}

var messagePrefixes = map[MessageKind]string{
	KindNote:    "Note: ",
	KindWarning: "Warning: ",
	KindError:   "Error: ",
}

func (c *Context) write(m Message) {
	text := messagePrefixes[m.Kind] + m.Text
	if col, ok := messageColors[m.Kind]; ok && !c.plain {
		text = col.Sprint(text)
	}
	fmt.Fprintln(c.out, text)
	if m.Kind == KindError || m.Kind == KindWarning {
		c.logger.Info("dialog message", "kind", m.Kind, "text", m.Text)
	}
}

// Highlight marks a value that cannot be displayed normally
func (c *Context) Highlight(s string) string {
	if c.plain {
		return "!" + s
	}
	return color.New(color.FgRed).Sprint(s)
}

// Titles returns a resolver for reference titles using this context's
// highlighting.
func (c *Context) Titles() schema.Titles {
	return schema.Titles{Env: c.Env, Highlight: c.Highlight}
}

// Printf writes directly to the output
func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
