// Package wsbridge is a reference [surface.Adapter] that forwards layout
// decisions to a host canvas over a websocket. Frames are msgpack-encoded
// request/response pairs; the host runs the actual rendering and echoes the
// rendered size back, which is what feeds dynamic stacking on real heights.
//
// The bridge is strictly sequential, matching the session model: one
// request is in flight at a time, so no read pump or correlation ids are
// needed.
package wsbridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/canvasflow/canvasflow/pkg/canvas"
	"github.com/canvasflow/canvasflow/pkg/surface"
)

// Op names of the bridge protocol.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpRemove  = "remove"
	OpConnect = "connect"
	OpBatch   = "batch"
	OpClear   = "clear"
	OpGrow    = "grow"
)

// Frame is one request to the host canvas.
type Frame struct {
	Op string `msgpack:"op"`

	// Element is set for create.
	Element *ElementFrame `msgpack:"element,omitempty"`

	// Handle is set for update and remove.
	Handle string `msgpack:"handle,omitempty"`

	// Content is set for update.
	Content string `msgpack:"content,omitempty"`

	// From/To/Dir/Label are set for connect.
	From  string `msgpack:"from,omitempty"`
	To    string `msgpack:"to,omitempty"`
	Dir   string `msgpack:"dir,omitempty"`
	Label string `msgpack:"label,omitempty"`

	// Moves is set for batch. The host must apply the whole list as a
	// single visual refresh.
	Moves []MoveFrame `msgpack:"moves,omitempty"`

	// ContainerID is set for clear and grow.
	ContainerID string `msgpack:"container_id,omitempty"`

	// Width/Height are set for grow.
	Width  float64 `msgpack:"width,omitempty"`
	Height float64 `msgpack:"height,omitempty"`
}

// ElementFrame carries a create request.
type ElementFrame struct {
	ID          string  `msgpack:"id"`
	Container   bool    `msgpack:"container,omitempty"`
	Kind        string  `msgpack:"kind,omitempty"`
	Title       string  `msgpack:"title,omitempty"`
	Content     string  `msgpack:"content,omitempty"`
	ContainerID string  `msgpack:"container_id,omitempty"`
	X           float64 `msgpack:"x"`
	Y           float64 `msgpack:"y"`
	Width       float64 `msgpack:"width"`
	Height      float64 `msgpack:"height"`
}

// MoveFrame is one entry of a batch frame.
type MoveFrame struct {
	Handle string  `msgpack:"handle"`
	Y      float64 `msgpack:"y"`
}

// Reply is the host's answer to a frame.
type Reply struct {
	// Handle is the created element/connector handle.
	Handle string `msgpack:"handle,omitempty"`

	// Width/Height echo the actual rendered size for create and update.
	Width  float64 `msgpack:"width,omitempty"`
	Height float64 `msgpack:"height,omitempty"`

	// Removed lists handles removed by a clear.
	Removed []string `msgpack:"removed,omitempty"`

	// Error is a host-side failure message.
	Error string `msgpack:"error,omitempty"`
}

// Bridge is a websocket-backed surface adapter.
type Bridge struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial connects to a host canvas endpoint.
func Dial(ctx context.Context, url string, header http.Header) (*Bridge, error) {
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsbridge: connect failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("wsbridge: connect failed: %w", err)
	}
	return &Bridge{conn: conn}, nil
}

// New wraps an already established connection, e.g. one accepted by a
// host-side upgrader.
func New(conn *websocket.Conn) *Bridge {
	return &Bridge{conn: conn}
}

// Close closes the underlying connection.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

// roundTrip sends one frame and waits for the host's reply.
func (b *Bridge) roundTrip(f *Frame) (*Reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: encode %s: %w", f.Op, err)
	}
	if err := b.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return nil, fmt.Errorf("wsbridge: write %s: %w", f.Op, err)
	}
	_, msg, err := b.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("wsbridge: read reply for %s: %w", f.Op, err)
	}
	var reply Reply
	if err := msgpack.Unmarshal(msg, &reply); err != nil {
		return nil, fmt.Errorf("wsbridge: decode reply for %s: %w", f.Op, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("wsbridge: host rejected %s: %s", f.Op, reply.Error)
	}
	return &reply, nil
}

func (b *Bridge) CreateElement(_ context.Context, el surface.Element) (surface.Handle, canvas.Size, error) {
	reply, err := b.roundTrip(&Frame{
		Op: OpCreate,
		Element: &ElementFrame{
			ID:          el.ID,
			Container:   el.Container,
			Kind:        el.Kind.String(),
			Title:       el.Title,
			Content:     el.Content,
			ContainerID: el.ContainerID,
			X:           el.Pos.X,
			Y:           el.Pos.Y,
			Width:       el.Size.Width,
			Height:      el.Size.Height,
		},
	})
	if err != nil {
		return "", canvas.Size{}, err
	}
	actual := canvas.Size{Width: reply.Width, Height: reply.Height}
	if actual == (canvas.Size{}) {
		actual = el.Size
	}
	return surface.Handle(reply.Handle), actual, nil
}

func (b *Bridge) UpdateElementContent(_ context.Context, h surface.Handle, content string) (canvas.Size, error) {
	reply, err := b.roundTrip(&Frame{Op: OpUpdate, Handle: string(h), Content: content})
	if err != nil {
		return canvas.Size{}, err
	}
	return canvas.Size{Width: reply.Width, Height: reply.Height}, nil
}

func (b *Bridge) RemoveElement(_ context.Context, h surface.Handle) error {
	_, err := b.roundTrip(&Frame{Op: OpRemove, Handle: string(h)})
	return err
}

func (b *Bridge) CreateConnector(_ context.Context, from, to surface.Handle, dir canvas.Direction, label string) (surface.Handle, error) {
	reply, err := b.roundTrip(&Frame{
		Op:    OpConnect,
		From:  string(from),
		To:    string(to),
		Dir:   dir.String(),
		Label: label,
	})
	if err != nil {
		return "", err
	}
	return surface.Handle(reply.Handle), nil
}

func (b *Bridge) BatchReposition(_ context.Context, moves []surface.Move) error {
	fm := make([]MoveFrame, len(moves))
	for i, m := range moves {
		fm[i] = MoveFrame{Handle: string(m.Handle), Y: m.Y}
	}
	_, err := b.roundTrip(&Frame{Op: OpBatch, Moves: fm})
	return err
}

func (b *Bridge) ClearContainerMembers(_ context.Context, containerID string) ([]surface.Handle, error) {
	reply, err := b.roundTrip(&Frame{Op: OpClear, ContainerID: containerID})
	if err != nil {
		return nil, err
	}
	handles := make([]surface.Handle, len(reply.Removed))
	for i, h := range reply.Removed {
		handles[i] = surface.Handle(h)
	}
	return handles, nil
}

func (b *Bridge) GrowContainer(_ context.Context, containerID string, size canvas.Size) error {
	_, err := b.roundTrip(&Frame{
		Op:          OpGrow,
		ContainerID: containerID,
		Width:       size.Width,
		Height:      size.Height,
	})
	return err
}
