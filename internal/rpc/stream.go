package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"ecosystem.dev/internal/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Stream[Input any, Output any] struct {
	// Name of the method, used by the client to call it
	Name string

	// Run implements the actual method. Returning ends the stream.
	Run func(req *StreamRequest[Input, Output]) error
}

type StreamRequest[Input any, Output any] streamRequest
type streamRequest struct {
	Method  string
	Id      string
	Context context.Context

	// Initial input to the stream
	RawInput []byte

	// The channel this stream request outputs to
	output chan<- socketMessageOut

	cancel func()
}

func (req *streamRequest) SendRaw(kind string, data any) {
	message := socketMessageOut{
		Method: req.Method,
		Id:     req.Id,
		Kind:   kind,
		Data:   data,
	}
	if kind == "error" {
		message.Err = fmt.Sprint(data)
		message.Data = nil
	}

	select {
	case req.output <- message:
	case <-req.Context.Done():
	}
}

func (s *StreamRequest[Input, _]) ParseInput() (Input, error) {
	var input Input
	if len(s.RawInput) == 0 {
		return input, nil
	}

	err := json.Unmarshal(s.RawInput, &input)
	if err != nil {
		logger.Debug("RPC stream method failed to parse input", log.Ctx{
			"method": s.Method,
			"id":     s.Id,
			"input":  string(s.RawInput),
		})
	}

	return input, err
}

func (s *StreamRequest[_, Output]) Send(o Output) {
	(*streamRequest)(s).SendRaw("methodOutput", o)
}

type socketMessageIn struct {
	// The ID is picked by the client, and must be unique per connection
	Id string `json:"id"`

	Kind   string          `json:"kind"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

type socketMessageOut struct {
	Id     string `json:"id,omitempty"`
	Kind   string `json:"kind"`
	Method string `json:"method,omitempty"`
	Err    string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type handler func(req *streamRequest) error

type Websocket struct {
	handlers map[string]handler
}

func (ws *Websocket) Handler() gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Err(err, "Failed to upgrade websocket", log.Ctx{})
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		ws.serve(ctx, conn)
	}
}

func (ws *Websocket) serve(ctx context.Context, conn *websocket.Conn) {
	var inFlight sync.Map
	outputChannel := make(chan socketMessageOut)

	// The socket cannot be written to concurrently
	go func() {
		for {
			select {
			case message := <-outputChannel:
				if err := conn.WriteJSON(message); err != nil {
					logger.Debug("Failed to write JSON to connection", log.Ctx{
						"method": message.Method,
						"id":     message.Id,
						"error":  err.Error(),
					})
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			// This also happens when the connection closes
			return
		}

		var input socketMessageIn
		if err := json.Unmarshal(message, &input); err != nil {
			logger.Debug("RPC websocket failed to parse", log.Ctx{
				"error":   err.Error(),
				"message": string(message),
			})
			reply := &streamRequest{Context: ctx, output: outputChannel}
			reply.SendRaw("error", "failed to parse JSON")
			continue
		}

		mCtx, mCancel := context.WithCancel(ctx)
		req := &streamRequest{
			Method:   input.Method,
			Id:       input.Id,
			RawInput: input.Data,
			Context:  mCtx,
			output:   outputChannel,
			cancel:   mCancel,
		}

		switch input.Kind {
		case "call":
			method, ok := ws.handlers[req.Method]
			if !ok {
				req.SendRaw("error", "invalid value for 'method'")
				mCancel()
				continue
			}

			if req.Id == "" {
				req.SendRaw("error", "'id' field was empty")
				mCancel()
				continue
			}

			if _, found := inFlight.LoadOrStore(req.Id, req); found {
				req.SendRaw("error", "'id' field used previous ID value")
				mCancel()
				continue
			}

			go func() {
				defer inFlight.Delete(req.Id)
				defer req.cancel()
				runMethod(method, req)
			}()

		case "cancel":
			prev, found := inFlight.LoadAndDelete(req.Id)
			mCancel()
			if !found {
				reply := &streamRequest{Id: input.Id, Context: ctx, output: outputChannel}
				reply.SendRaw("error", "'id' not found")
				continue
			}

			prev.(*streamRequest).cancel()

		default:
			req.SendRaw("error", "invalid value for 'kind'")
			mCancel()
		}
	}
}

func runMethod(method handler, req *streamRequest) {
	logger.Debug("starting up RPC stream", log.Ctx{
		"method": req.Method,
		"id":     req.Id,
	})

	req.SendRaw("methodStarted", nil)

	if err := method(req); err != nil {
		req.SendRaw("error", err.Error())
		return
	}

	req.SendRaw("methodDone", nil)
}

func (method *Stream[Input, Output]) handler(rawReq *streamRequest) error {
	return method.Run((*StreamRequest[Input, Output])(rawReq))
}

func (method *Stream[Input, Output]) Register(ws *Websocket) error {
	if _, ok := ws.handlers[method.Name]; ok {
		return fmt.Errorf("multiple streams registered to the same name: %s", method.Name)
	}

	if ws.handlers == nil {
		ws.handlers = make(map[string]handler)
	}
	ws.handlers[method.Name] = method.handler

	return nil
}
