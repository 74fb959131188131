package rpc

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type countInput struct {
	To int `json:"to"`
}

func newTestSocket(t *testing.T) *websocket.Conn {
	t.Helper()

	ws := &Websocket{}

	count := Stream[countInput, int]{
		Name: "Count",
		Run: func(req *StreamRequest[countInput, int]) error {
			input, err := req.ParseInput()
			if err != nil {
				return err
			}
			if input.To < 0 {
				return errors.New("cannot count down")
			}
			for i := 1; i <= input.To; i++ {
				req.Send(i)
			}
			return nil
		},
	}
	if err := count.Register(ws); err != nil {
		t.Fatal(err)
	}

	forever := Stream[struct{}, int]{
		Name: "Forever",
		Run: func(req *StreamRequest[struct{}, int]) error {
			<-req.Context.Done()
			return nil
		},
	}
	if err := forever.Register(ws); err != nil {
		t.Fatal(err)
	}

	if err := count.Register(ws); err == nil {
		t.Fatalf("expected registering the same name twice to fail")
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/websocket", ws.Handler())

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) socketMessageOut {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var message socketMessageOut
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatal(err)
	}
	return message
}

func TestStreamSendsOutput(t *testing.T) {
	conn := newTestSocket(t)

	if err := conn.WriteJSON(map[string]any{"kind": "call", "id": "1", "method": "Count", "data": map[string]int{"to": 3}}); err != nil {
		t.Fatal(err)
	}

	kinds := []string{}
	values := []float64{}
	for {
		message := readMessage(t, conn)
		kinds = append(kinds, message.Kind)
		if message.Kind == "methodOutput" {
			values = append(values, message.Data.(float64))
		}
		if message.Kind == "methodDone" || message.Kind == "error" {
			break
		}
	}

	if kinds[0] != "methodStarted" || kinds[len(kinds)-1] != "methodDone" {
		t.Fatalf("unexpected message kinds: %v", kinds)
	}
	if len(values) != 3 || values[0] != 1 || values[2] != 3 {
		t.Fatalf("unexpected values: %v", values)
	}
}

func TestStreamReportsErrors(t *testing.T) {
	conn := newTestSocket(t)

	conn.WriteJSON(map[string]any{"kind": "call", "id": "1", "method": "Count", "data": map[string]int{"to": -1}})

	if message := readMessage(t, conn); message.Kind != "methodStarted" {
		t.Fatalf("expected methodStarted, got %+v", message)
	}
	if message := readMessage(t, conn); message.Kind != "error" || message.Err != "cannot count down" {
		t.Fatalf("expected an error, got %+v", message)
	}

	conn.WriteJSON(map[string]any{"kind": "call", "id": "2", "method": "Nope"})
	if message := readMessage(t, conn); message.Kind != "error" || message.Id != "2" {
		t.Fatalf("expected an error for an unknown method, got %+v", message)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("{"))
	if message := readMessage(t, conn); message.Kind != "error" {
		t.Fatalf("expected an error for broken JSON, got %+v", message)
	}
}

func TestStreamCancel(t *testing.T) {
	conn := newTestSocket(t)

	conn.WriteJSON(map[string]any{"kind": "call", "id": "forever", "method": "Forever"})
	if message := readMessage(t, conn); message.Kind != "methodStarted" {
		t.Fatalf("expected methodStarted, got %+v", message)
	}

	conn.WriteJSON(map[string]any{"kind": "cancel", "id": "forever"})

	// The done message can race with the cancellation, so accept either outcome
	// as long as the next call with a fresh id works.
	conn.WriteJSON(map[string]any{"kind": "call", "id": "count", "method": "Count", "data": map[string]int{"to": 1}})
	for {
		message := readMessage(t, conn)
		if message.Id == "count" && message.Kind == "methodDone" {
			break
		}
	}
}
