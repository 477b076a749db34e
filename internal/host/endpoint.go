package host

import (
	"context"
	stderrors "errors"
	"io"
	"sync"

	"github.com/yanun0323/logs"

	"hwstrat/internal/schema"
	"hwstrat/pkg/exception"
	"hwstrat/pkg/uds"
)

// Endpoint is the pipeline side of the host link. It serves one host
// connection at a time, queues inbound messages for the scheduler and
// sends notifications back to the connected host.
type Endpoint struct {
	srv     *uds.Server
	inbound chan []schema.DMAWord

	mu        sync.Mutex
	link      *Link
	closeOnce sync.Once
	closeErr  error
}

// Listen binds the socket at path. depth bounds the inbound message queue.
func Listen(path string, depth int) (*Endpoint, error) {
	srv, err := uds.NewServer(path)
	if err != nil {
		return nil, err
	}
	if err := srv.Listen(); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 1
	}
	return &Endpoint{srv: srv, inbound: make(chan []schema.DMAWord, depth)}, nil
}

// Inbound delivers complete host messages. It is closed when Serve returns.
func (e *Endpoint) Inbound() <-chan []schema.DMAWord {
	return e.inbound
}

// Connected reports whether a host is attached.
func (e *Endpoint) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.link != nil
}

// Serve accepts host connections until ctx is done.
func (e *Endpoint) Serve(ctx context.Context) error {
	defer close(e.inbound)

	go func() {
		<-ctx.Done()
		_ = e.Close()
	}()

	for {
		conn, err := e.srv.AcceptContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		link := NewLink(conn)
		e.attach(link)
		logs.Infof("[HOST] host connected on %s", e.srv.Path())
		err = e.readLoop(ctx, link)
		e.detach(link)
		if err != nil && ctx.Err() == nil {
			logs.Errorf("[HOST] host link failed, err: %+v", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (e *Endpoint) readLoop(ctx context.Context, link *Link) error {
	for {
		words, err := link.Receive()
		if stderrors.Is(err, io.EOF) {
			logs.Info("[HOST] host disconnected")
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case e.inbound <- words:
		case <-ctx.Done():
			return nil
		}
	}
}

// Send forwards one message to the connected host.
func (e *Endpoint) Send(words []schema.DMAWord) error {
	e.mu.Lock()
	link := e.link
	e.mu.Unlock()
	if link == nil {
		return exception.ErrHostLinkClosed
	}
	return link.Send(words)
}

// Close stops listening and drops the current host.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.detach(nil)
		e.closeErr = e.srv.Close()
	})
	return e.closeErr
}

func (e *Endpoint) attach(link *Link) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.link = link
}

// detach closes the current link when it is want, or whatever is attached
// when want is nil.
func (e *Endpoint) detach(want *Link) {
	e.mu.Lock()
	link := e.link
	if want == nil || link == want {
		e.link = nil
	}
	e.mu.Unlock()
	if link != nil && (want == nil || link == want) {
		_ = link.Close()
	}
}

// Dial connects a host tool to the pipeline socket.
func Dial(ctx context.Context, path string) (*Link, error) {
	client, err := uds.NewClient(path)
	if err != nil {
		return nil, err
	}
	conn, err := client.DialRetry(ctx, 0)
	if err != nil {
		return nil, err
	}
	if n := client.Attempts(); n > 1 {
		logs.Infof("[HOST] connected to %s after %d attempts", path, n)
	}
	return NewLink(conn), nil
}
