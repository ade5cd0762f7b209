package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/photoblog-ai/internal/core/aiquery"
	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

const streamBuffer = 16

// Stream starts an incremental completion. Errors before the first byte of
// the body are returned directly; later failures arrive as the terminal
// event on the channel.
func (c *Client) Stream(ctx context.Context, imageBase64, prompt string) (<-chan domain.StreamEvent, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	start := time.Now()

	if err := c.checkRateLimit(ctx); err != nil {
		c.observe("stream", outcomeFor(err), start)
		return nil, true, err
	}

	req, err := c.newRequest(ctx, "/chat/completions", c.imageRequest(imageBase64, prompt, true), "stream")
	if err != nil {
		return nil, true, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = wrapTemporaryIfNeeded("openai stream", fmt.Errorf("openai stream request: %w", err))
		c.observe("stream", "error", start)
		return nil, true, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		err := wrapTemporaryIfNeeded("openai stream", newHTTPStatusError("stream", resp))
		c.observe("stream", "error", start)
		return nil, true, err
	}

	events := make(chan domain.StreamEvent, streamBuffer)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		err := readEventStream(ctx, resp.Body, func(delta string) bool {
			select {
			case events <- domain.StreamEvent{Delta: delta}:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}

		terminal := domain.StreamEvent{Done: true}
		if err != nil {
			terminal = domain.StreamEvent{Err: err}
		}
		c.observe("stream", outcomeFor(err), start)
		select {
		case events <- terminal:
		case <-ctx.Done():
		}
	}()
	return events, true, nil
}

// readEventStream feeds cleaned deltas to emit until the [DONE] marker. A
// body that ends without the marker is reported as an interrupted stream.
func readEventStream(ctx context.Context, body io.Reader, emit func(string) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return domain.WrapError(domain.ErrParse, "openai stream", fmt.Errorf("decode chunk: %w", err))
		}
		for _, choice := range chunk.Choices {
			delta := aiquery.CleanStreamDelta(choice.Delta.Content)
			if delta == "" {
				continue
			}
			if !emit(delta) {
				return ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return wrapTemporaryIfNeeded("openai stream", fmt.Errorf("read stream: %w", err))
	}
	return domain.WrapError(domain.ErrTemporary, "openai stream", errors.New("stream ended before completion marker"))
}
