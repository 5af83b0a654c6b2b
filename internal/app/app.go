// Package app is the composition root. It wires configuration, transport,
// session and view together in a samber/do container.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/nfrund/chatline/internal/config"
	"github.com/nfrund/chatline/internal/server"
	"github.com/nfrund/chatline/internal/session"
	"github.com/nfrund/chatline/internal/transport"
	"github.com/nfrund/chatline/internal/view"
)

// Options selects how the container builds its services.
type Options struct {
	// Offline uses the in-process loopback instead of dialing the endpoint.
	Offline bool
	// Redraw repaints the whole screen on every change.
	Redraw bool
	// Color enables ANSI colors.
	Color bool
}

// NewInjector registers every service provider. Services are built lazily on
// first invoke. ctx bounds the websocket handshake.
func NewInjector(ctx context.Context, cfg *config.Config, out io.Writer, opts Options) *do.RootScope {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.ProvideValue(i, slog.Default())

	do.Provide(i, func(i do.Injector) (transport.Handle, error) {
		if opts.Offline {
			return transport.NewLoopback(), nil
		}
		conn, err := transport.Dial(ctx, cfg.Endpoint,
			transport.WithSendBuffer(cfg.SendBuffer),
			transport.WithWriteTimeout(cfg.WriteTimeout),
			transport.WithLogger(do.MustInvoke[*slog.Logger](i)),
		)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})

	do.Provide(i, func(i do.Injector) (*view.Terminal, error) {
		return view.NewTerminal(out,
			view.WithTitle(cfg.RoomTitle),
			view.WithViewport(cfg.Viewport),
			view.WithColor(opts.Color),
			view.WithRedraw(opts.Redraw),
		), nil
	})

	do.Provide(i, func(i do.Injector) (*session.Session, error) {
		mode, err := session.ParseEchoMode(cfg.EchoMode)
		if err != nil {
			return nil, err
		}
		handle, err := do.Invoke[transport.Handle](i)
		if err != nil {
			return nil, err
		}
		term := do.MustInvoke[*view.Terminal](i)

		return session.New(handle,
			session.WithEchoMode(mode),
			session.WithScroller(cfg.ScrollDelay, term.ScrollToLatest),
			session.WithOnChange(term.Render),
			session.WithLogger(do.MustInvoke[*slog.Logger](i)),
		), nil
	})

	return i
}

// Chat is a mounted session together with the pieces that drive it.
type Chat struct {
	Session   *session.Session
	View      *view.Terminal
	Transport transport.Handle

	injector *do.RootScope
}

// NewChat builds and mounts a session.
func NewChat(ctx context.Context, cfg *config.Config, out io.Writer, opts Options) (*Chat, error) {
	i := NewInjector(ctx, cfg, out, opts)

	sess, err := do.Invoke[*session.Session](i)
	if err != nil {
		i.Shutdown()
		return nil, fmt.Errorf("build session: %w", err)
	}
	c := &Chat{
		Session:   sess,
		View:      do.MustInvoke[*view.Terminal](i),
		Transport: do.MustInvoke[transport.Handle](i),
		injector:  i,
	}

	if err := sess.Mount(); err != nil {
		c.Close()
		return nil, err
	}
	c.View.Render(sess.Snapshot())
	return c, nil
}

// Close unmounts the session and closes the transport.
func (c *Chat) Close() error {
	c.Session.Unmount()
	err := c.Transport.Close()
	c.injector.Shutdown()
	return err
}

// NewRelay builds the development relay. It owns no container services, so
// it is constructed directly.
func NewRelay(cfg *config.Config) *server.Server {
	return server.New(server.WithSendBuffer(cfg.SendBuffer))
}
