package wsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/canvasflow/canvasflow/pkg/canvas"
	"github.com/canvasflow/canvasflow/pkg/surface"
)

// fakeHost runs a websocket endpoint that answers every frame through reply.
func fakeHost(t *testing.T, reply func(f *Frame) Reply) (*Bridge, func()) {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f Frame
			if err := msgpack.Unmarshal(msg, &f); err != nil {
				t.Errorf("host: bad frame: %v", err)
				return
			}
			data, err := msgpack.Marshal(reply(&f))
			if err != nil {
				t.Errorf("host: encode reply: %v", err)
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	b, err := Dial(context.Background(), url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return b, func() {
		b.Close()
		srv.Close()
	}
}

func TestBridgeCreateEchoesRenderedSize(t *testing.T) {
	var got *Frame
	b, done := fakeHost(t, func(f *Frame) Reply {
		got = f
		return Reply{Handle: "h1", Width: 220, Height: 176}
	})
	defer done()

	h, actual, err := b.CreateElement(context.Background(), surface.Element{
		ID:      "n1",
		Kind:    canvas.KindIdea,
		Content: "hello",
		Pos:     canvas.Point{X: 24, Y: 72},
		Size:    canvas.Size{Width: 220, Height: 120},
	})
	if err != nil {
		t.Fatal(err)
	}
	if h != "h1" {
		t.Fatalf("handle = %q, want h1", h)
	}
	if actual != (canvas.Size{Width: 220, Height: 176}) {
		t.Fatalf("actual = %v, want the host-rendered size", actual)
	}
	if got.Op != OpCreate || got.Element == nil {
		t.Fatalf("host received %+v", got)
	}
	if got.Element.ID != "n1" || got.Element.Kind != "idea" || got.Element.X != 24 {
		t.Fatalf("element frame mangled: %+v", got.Element)
	}
}

func TestBridgeCreateWithoutEchoFallsBack(t *testing.T) {
	b, done := fakeHost(t, func(*Frame) Reply {
		return Reply{Handle: "h1"}
	})
	defer done()

	req := canvas.Size{Width: 220, Height: 120}
	_, actual, err := b.CreateElement(context.Background(), surface.Element{ID: "n1", Size: req})
	if err != nil {
		t.Fatal(err)
	}
	if actual != req {
		t.Fatalf("actual = %v, want requested size when host stays silent", actual)
	}
}

func TestBridgeBatchAndClear(t *testing.T) {
	var frames []Frame
	b, done := fakeHost(t, func(f *Frame) Reply {
		frames = append(frames, *f)
		if f.Op == OpClear {
			return Reply{Removed: []string{"h1", "h2"}}
		}
		return Reply{}
	})
	defer done()

	ctx := context.Background()
	moves := []surface.Move{{Handle: "h1", Y: 272}, {Handle: "h2", Y: 432}}
	if err := b.BatchReposition(ctx, moves); err != nil {
		t.Fatal(err)
	}
	removed, err := b.ClearContainerMembers(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 || removed[0] != "h1" {
		t.Fatalf("removed = %v, want [h1 h2]", removed)
	}

	if len(frames) != 2 {
		t.Fatalf("host saw %d frames, want 2", len(frames))
	}
	if len(frames[0].Moves) != 2 || frames[0].Moves[1].Y != 432 {
		t.Fatalf("batch frame mangled: %+v", frames[0].Moves)
	}
	if frames[1].ContainerID != "g" {
		t.Fatalf("clear frame mangled: %+v", frames[1])
	}
}

func TestBridgeHostErrorPropagates(t *testing.T) {
	b, done := fakeHost(t, func(*Frame) Reply {
		return Reply{Error: "no such handle"}
	})
	defer done()

	_, err := b.UpdateElementContent(context.Background(), "h404", "text")
	if err == nil || !strings.Contains(err.Error(), "no such handle") {
		t.Fatalf("got %v, want host error surfaced", err)
	}
}
