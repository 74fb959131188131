package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Lumberjack implements log file rotation
var writer = &switchWriter{out: io.Discard}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// switchWriter lets loggers created at package init time pick up the log file
// once the CLI knows where it lives.
type switchWriter struct {
	m   sync.RWMutex
	out io.Writer
}

func (w *switchWriter) Write(p []byte) (int, error) {
	w.m.RLock()
	defer w.m.RUnlock()
	return w.out.Write(p)
}

func (w *switchWriter) set(out io.Writer) io.Writer {
	w.m.Lock()
	defer w.m.Unlock()
	prev := w.out
	w.out = out
	return prev
}

// SetOutputFile starts writing structured logs into the given file, rotating it
// once it grows past 64MB.
func SetOutputFile(filename string) {
	prev := writer.set(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    64, // Megabytes
		MaxBackups: 1,
	})

	if closer, ok := prev.(io.Closer); ok {
		closer.Close()
	}
}

// SetConsole replaces the human readable output, mostly so tests can silence it.
func SetConsole(out io.Writer) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
}

func SetVerbose(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

type Ctx map[string]any
type Logger struct {
	zero      zerolog.Logger
	namespace string
}

func New(namespace string) Logger {
	return Logger{
		zero:      zerolog.New(writer).With().Timestamp().Str("namespace", namespace).Logger(),
		namespace: namespace,
	}
}

func (l *Logger) Debug(msg string, ctx Ctx) {
	l.zero.Debug().Interface("data", ctx).Msg(msg)
	log.Debug().Str("ns", l.namespace).Fields(map[string]any(ctx)).Msg(msg)
}

func (l *Logger) Info(msg string, ctx Ctx) {
	l.zero.Info().Interface("data", ctx).Msg(msg)
	log.Info().Str("ns", l.namespace).Fields(map[string]any(ctx)).Msg(msg)
}

// Print is always shown on the console, regardless of the configured level.
func (l *Logger) Print(msg string, ctx Ctx) {
	l.zero.Info().Interface("data", ctx).Msg(msg)
	log.WithLevel(zerolog.NoLevel).Fields(map[string]any(ctx)).Msg(msg)
}

func (l *Logger) Warn(msg string, ctx Ctx) {
	l.zero.Warn().Interface("data", ctx).Msg(msg)
	log.Warn().Str("ns", l.namespace).Fields(map[string]any(ctx)).Msg(msg)
}

func (l *Logger) Err(e error, msg string, ctx Ctx) {
	l.zero.Err(e).Interface("data", ctx).Msg(msg)
	log.Error().Err(e).Str("ns", l.namespace).Fields(map[string]any(ctx)).Msg(msg)
}
