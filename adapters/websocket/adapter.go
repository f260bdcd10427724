package websocket

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"loyaltykit/core"
	"loyaltykit/realtime"

	gorillaws "github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Handler returns an http.Handler that upgrades to WebSocket and streams
// notifications from the hub. A "participant" query parameter restricts the
// stream to one participant and repeated "kind" parameters to those kinds.
func Handler(hub *realtime.Hub) http.Handler {
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(256, filter)
		defer hub.Unsubscribe(id)

		// The client never sends data; reading only detects the close.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case n, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(n)); err != nil {
					return
				}
			}
		}
	})
}

func parseFilter(r *http.Request) (realtime.Filter, error) {
	var f realtime.Filter
	q := r.URL.Query()
	if p := strings.TrimSpace(q.Get("participant")); p != "" {
		id, err := core.NormalizeParticipantID(core.ParticipantID(p))
		if err != nil {
			return f, err
		}
		f.Participant = id
	}
	for _, k := range q["kind"] {
		switch kind := core.NotificationKind(strings.ToLower(strings.TrimSpace(k))); kind {
		case core.NotificationSuccess, core.NotificationInfo, core.NotificationError, core.NotificationWarning:
			f.Kinds = append(f.Kinds, kind)
		default:
			return f, fmt.Errorf("unknown notification kind %q", k)
		}
	}
	return f, nil
}
