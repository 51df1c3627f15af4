package api

import (
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
)

func wsDial(t *testing.T, s *Server) *websocket.Conn {
    t.Helper()
    srv := httptest.NewServer(http.HandlerFunc(s.AllocationsWSHandler))
    t.Cleanup(srv.Close)
    u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/allocations/ws"
    hdr := http.Header{}
    hdr.Set("X-Tenant-Id", "t_test")
    hdr.Set("X-Role", "admin")
    c, _, err := websocket.DefaultDialer.Dial(u, hdr)
    if err != nil { t.Fatalf("dial: %v", err) }
    t.Cleanup(func() { _ = c.Close() })
    return c
}

func TestAllocationsWSStream(t *testing.T) {
    s := newTestServer(t)
    c := wsDial(t, s)

    if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil { t.Fatalf("init: %v", err) }
    var ack wsMessage
    if err := c.ReadJSON(&ack); err != nil { t.Fatalf("read ack: %v", err) }
    if ack.Type != "connection_ack" { t.Fatalf("ack type: %s", ack.Type) }

    pl, _ := json.Marshal(map[string]any{"topic": "allocationEvents"})
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil { t.Fatalf("subscribe: %v", err) }

    time.Sleep(50 * time.Millisecond)
    s.Broker.Publish("t_test", SSEEvent{Type: "allocation.completed", Data: map[string]any{"planDate": "2026-03-01"}})

    _ = c.SetReadDeadline(time.Now().Add(time.Second))
    for {
        var m wsMessage
        if err := c.ReadJSON(&m); err != nil { t.Fatalf("read next: %v", err) }
        if m.Type == "ping" { continue }
        if m.Type != "next" || m.ID != "1" { t.Fatalf("unexpected frame: %+v", m) }
        if !strings.Contains(string(m.Payload), "allocation.completed") {
            t.Fatalf("payload: %s", m.Payload)
        }
        break
    }
}

func TestAllocationsWSConcurrentFanout(t *testing.T) {
    s := newTestServer(t)
    c := wsDial(t, s)

    if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil { t.Fatalf("init: %v", err) }
    var ack wsMessage
    if err := c.ReadJSON(&ack); err != nil { t.Fatalf("read ack: %v", err) }

    // Two subscriptions on one connection means two fanout goroutines
    // writing next frames concurrently.
    pl, _ := json.Marshal(map[string]any{"topic": "allocationEvents"})
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil { t.Fatalf("subscribe 1: %v", err) }
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "2", Payload: pl}); err != nil { t.Fatalf("subscribe 2: %v", err) }

    time.Sleep(50 * time.Millisecond)
    const events = 5
    for i := 0; i < events; i++ {
        s.Broker.Publish("t_test", SSEEvent{Type: "allocation.completed", Data: map[string]any{"n": i}})
    }

    _ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
    got := 0
    for got < 2*events {
        var m wsMessage
        if err := c.ReadJSON(&m); err != nil { t.Fatalf("read after %d frames: %v", got, err) }
        if m.Type == "ping" { continue }
        if m.Type != "next" { t.Fatalf("unexpected frame: %+v", m) }
        got++
    }
}
