// Package effects implements the driver-owned effect dispatch table.
// The core engine only ever queues Effect records (internal/state);
// this package is what the CLI driver wires in to actually act on the
// two built-in effect names, "print" and "notify".
package effects

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gen2brain/beeep"

	"github.com/mkforsb/scrapeycat/internal/state"
)

// Handler acts on one queued effect. It must not mutate e.
type Handler func(ctx context.Context, e state.Effect) error

// Dispatcher owns the name -> Handler table the engine's effects are
// routed through after a successful run. The engine itself never
// interprets an effect's name.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher builds a Dispatcher with the two built-in handlers
// registered, printing to out.
func NewDispatcher(out io.Writer) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler)}
	d.Register("print", PrintHandler(out))
	d.Register("notify", NotifyHandler)
	return d
}

// Register installs (or replaces) the handler for name.
func (d *Dispatcher) Register(name string, h Handler) {
	d.handlers[name] = h
}

// Dispatch routes e to its registered handler. An effect with no
// registered handler is silently ignored — the core's contract is only
// that it queues records; a driver that doesn't recognize a name simply
// has nothing further to do with it.
func (d *Dispatcher) Dispatch(ctx context.Context, e state.Effect) error {
	h, ok := d.handlers[e.Name]
	if !ok {
		return nil
	}
	return h(ctx, e)
}

// PrintHandler builds the "print" handler: positional args (or,
// absent those, the current results — already folded into Positional by
// the engine's effect() binding) joined by single space and terminated
// by keyword "eol" (default "\n"). "eol", not "end", is the keyword name
// this build honors.
func PrintHandler(out io.Writer) Handler {
	return func(_ context.Context, e state.Effect) error {
		eol := "\n"
		if v, ok := e.Keyword["eol"]; ok {
			eol = v
		}
		_, err := fmt.Fprint(out, strings.Join(e.Positional, " ")+eol)
		return err
	}
}

// NotifyHandler implements the "notify" handler: a desktop
// notification via github.com/gen2brain/beeep. Body defaults to the
// space-joined positional args; the "body" keyword overrides it.
func NotifyHandler(_ context.Context, e state.Effect) error {
	body := strings.Join(e.Positional, " ")
	if v, ok := e.Keyword["body"]; ok {
		body = v
	}
	title := e.Keyword["title"]

	if appname, ok := e.Keyword["appname"]; ok {
		beeep.AppName = appname
	}

	if sound, ok := e.Keyword["sound"]; ok && sound != "" && sound != "false" {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			return err
		}
	}

	icon := e.Keyword["icon"]
	return beeep.Notify(title, body, icon)
}
