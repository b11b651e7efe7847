package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// StreamingResponseWriter wraps http.ResponseWriter so the logger and
// metrics middleware can capture a status code without losing the optional
// interfaces the two response paths behind them need: Flusher for SSE
// chunk-by-chunk delivery in the streaming meter, and Hijacker for the
// gorilla/websocket upgrade on /v1/ws. Both routes sit behind this wrapper
// in the middleware chain, so it forwards every optional interface rather
// than only the one a given route happens to use today.
type StreamingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func NewStreamingResponseWriter(w http.ResponseWriter) *StreamingResponseWriter {
	return &StreamingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *StreamingResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *StreamingResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush is the meter's path to push each SSE chunk to the client as soon as
// it's read from upstream, rather than letting it sit in a buffer.
func (w *StreamingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the websocket upgrade on /v1/ws take over the underlying TCP
// connection despite sitting behind this wrapper.
func (w *StreamingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijack not supported")
}

func (w *StreamingResponseWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func (w *StreamingResponseWriter) StatusCode() int {
	return w.statusCode
}
