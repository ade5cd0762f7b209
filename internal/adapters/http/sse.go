package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

type streamDelta struct {
	Delta string `json:"delta"`
}

type streamError struct {
	Error string `json:"error"`
}

// writeEventStream relays events as server-sent events. A successful stream
// ends with the [DONE] marker; a failed one ends with an error event.
func writeEventStream(ctx context.Context, w http.ResponseWriter, events <-chan domain.StreamEvent) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-events:
			if !open {
				return nil
			}
			switch {
			case ev.Err != nil:
				if err := writeEvent(w, streamError{Error: ev.Err.Error()}); err != nil {
					return err
				}
				flusher.Flush()
				return ev.Err
			case ev.Done:
				if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
					return err
				}
				flusher.Flush()
				return nil
			default:
				if err := writeEvent(w, streamDelta{Delta: ev.Delta}); err != nil {
					return err
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w io.Writer, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", raw)
	return err
}
