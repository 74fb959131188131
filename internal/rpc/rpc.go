package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ecosystem.dev/internal/log"
	"github.com/gin-gonic/gin"
)

type HttpError struct {
	StatusCode int
	Message    string
}

func (err *HttpError) Error() string {
	return err.Message
}

func Errorf(statusCode int, format string, args ...any) *HttpError {
	return &HttpError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf(format, args...),
	}
}

type Request[Input any] struct {
	// Data is the input sent by the client
	Data Input

	// Context is cancelled when the client goes away
	Context context.Context
}

type Method[Input any, Output any] struct {
	// Name of the method, used by the client to call it
	Name string

	// SkipInputParsing skips parsing the input, and passes the zero value
	// of the input to the handler.
	SkipInputParsing bool

	// Run implements the actual method. It must always return the same shape.
	// The error must contain a reasonable HTTP status code.
	Run func(req Request[Input]) (Output, *HttpError)
}

var logger log.Logger = log.New("rpc")

func sendJson(c *gin.Context, statusCode int, data any) {
	if !strings.HasPrefix(c.GetHeader("User-Agent"), "curl/") {
		c.JSON(statusCode, data)
		return
	}

	buf, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"type": "error", "error": err.Error()})
		return
	}
	c.Data(statusCode, "application/json; charset=utf-8", buf)
}

func (method *Method[Input, Output]) Register(router *gin.RouterGroup) {
	router.POST("/"+method.Name, func(c *gin.Context) {
		var input Input

		if !method.SkipInputParsing && c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				sendJson(c, http.StatusBadRequest, gin.H{"type": "error", "error": err.Error()})
				return
			}
		}

		result, httpError := method.Run(Request[Input]{
			Data:    input,
			Context: c.Request.Context(),
		})
		if httpError != nil {
			logger.Debug("RPC method failed", log.Ctx{
				"method": method.Name,
				"status": httpError.StatusCode,
				"error":  httpError.Message,
			})
			sendJson(c, httpError.StatusCode, gin.H{"type": "error", "error": httpError.Message})
			return
		}

		sendJson(c, http.StatusOK, result)
	})
}
