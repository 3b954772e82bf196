package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/docopt/docopt-go"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vdomlabs/livediff"
)

const DemoVersion = "0.1.0"

// livediff-demo hosts render sessions over a WebSocket endpoint. It plays
// the transport role the engine itself stays out of: one session per
// connection, one render-diff cycle per received event, updates written
// back as JSON envelopes.

const usage = `livediff-demo

Serve a demo task-list view over WebSocket. Each connected client gets
its own render session; events sent as {"event": ..., "value": ...}
trigger a render-diff cycle and the patch update comes back as JSON.

Usage:
    livediff-demo [--listen=<addr>] [--verbose]
    livediff-demo -h | --help
    livediff-demo --version

Options:
    --listen=<addr>  Listen address [default: 127.0.0.1:8700].
    --verbose        Enable debug logging.
    -h --help        Show this screen.
    --version        Show version.`

type viewState struct {
	Count int
	Items []string
}

type event struct {
	Event string `json:"event"`
	Value string `json:"value,omitempty"`
}

// renderView builds the tree for the demo view. Items carry data-key so
// reorders and removals come out as moves, not rewrites.
func renderView(ctx context.Context, templateRef string, state any) (*livediff.Node, error) {
	vs, ok := state.(*viewState)
	if !ok {
		return nil, fmt.Errorf("unexpected state type %T", state)
	}
	list := livediff.Element("ul", livediff.Attr{Name: "class", Value: "items"})
	for _, item := range vs.Items {
		list.Append(
			livediff.Element("li", livediff.Attr{Name: "data-key", Value: item}).
				Append(livediff.Text(item)),
		)
	}
	return livediff.Element("div", livediff.Attr{Name: "class", Value: "demo"}).Append(
		livediff.Element("p").Append(livediff.Text("Clicks: "+strconv.Itoa(vs.Count))),
		list,
	), nil
}

func main() {
	opts, err := docopt.ParseArgs(usage, nil, DemoVersion)
	if err != nil {
		logrus.Fatal(err)
	}
	addr, _ := opts.String("--listen")
	if verbose, _ := opts.Bool("--verbose"); verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	upgrader := websocket.Upgrader{
		// Demo only; a real host would check the origin.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	http.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("upgrade failed")
			return
		}
		defer conn.Close()
		serve(r.Context(), conn)
	})

	logrus.WithField("addr", addr).Info("livediff-demo listening")
	if err := http.ListenAndServe(addr, nil); err != nil {
		logrus.Fatal(err)
	}
}

func serve(ctx context.Context, conn *websocket.Conn) {
	session := livediff.NewSession(
		livediff.RendererFunc(renderView), "demo/tasks", livediff.DefaultSessionOptions())
	defer session.Close()

	log := logrus.WithField("session", session.ID())
	state := &viewState{Items: []string{"alpha", "beta"}}

	update, err := session.Mount(ctx, state)
	if err != nil {
		log.WithError(err).Error("mount failed")
		return
	}
	if err := conn.WriteJSON(update); err != nil {
		return
	}

	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			log.WithError(err).Debug("connection closed")
			return
		}
		switch ev.Event {
		case "increment":
			state.Count++
		case "add":
			if ev.Value != "" {
				state.Items = append(state.Items, ev.Value)
			}
		case "remove":
			for i, item := range state.Items {
				if item == ev.Value {
					state.Items = append(state.Items[:i], state.Items[i+1:]...)
					break
				}
			}
		case "reverse":
			for i, j := 0, len(state.Items)-1; i < j; i, j = i+1, j-1 {
				state.Items[i], state.Items[j] = state.Items[j], state.Items[i]
			}
		default:
			log.WithField("event", ev.Event).Warn("unknown event")
			continue
		}

		update, err := session.HandleEvent(ctx, state)
		if err != nil {
			// Renderer and structural failures keep the last good state;
			// report upward and keep the connection.
			log.WithError(err).Error("render cycle failed")
			continue
		}
		if err := conn.WriteJSON(update); err != nil {
			return
		}
	}
}
