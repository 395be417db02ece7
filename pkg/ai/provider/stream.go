package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// Stream events from the Messages API. Only the fields the gateway needs
// are decoded; everything else is ignored.

type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Model string         `json:"model"`
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage anthropicUsage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// readStream consumes SSE events from the response body and delivers
// chunks until message_stop, an error event, or cancellation. The final
// chunk carries accumulated usage and the stop reason.
func (p *AnthropicProvider) readStream(ctx context.Context, body io.Reader, chunks chan<- Chunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var usage Usage
	var stopReason string

	// send delivers one chunk unless the consumer is gone. Every send
	// must watch ctx or an abandoned stream blocks this goroutine
	// forever once the channel buffer fills.
	send := func(c Chunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			send(Chunk{Err: ctx.Err()})
			return
		default:
		}

		event, err := readEvent(scanner)
		if err != nil {
			if err == io.EOF {
				// Stream ended without message_stop. Report what we
				// have so token accounting still happens.
				send(Chunk{Usage: &usage, StopReason: stopReason})
				return
			}
			send(Chunk{Err: &StreamError{
				Provider: p.config.Name,
				Message:  "failed to read stream",
				Cause:    err,
			}})
			return
		}
		if event == nil {
			continue
		}

		switch event.Type {
		case "message_start":
			usage.PromptTokens = event.Message.Usage.InputTokens

		case "content_block_delta":
			if event.Delta.Text == "" {
				continue
			}
			if !send(Chunk{Delta: event.Delta.Text}) {
				return
			}

		case "message_delta":
			if event.Usage.OutputTokens > 0 {
				usage.CompletionTokens = event.Usage.OutputTokens
			}
			if event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}

		case "message_stop":
			send(Chunk{Usage: &usage, StopReason: stopReason})
			return

		case "error":
			send(Chunk{Err: &StreamError{
				Provider: p.config.Name,
				Message:  event.Error.Message,
			}})
			return
		}
		// ping, content_block_start, content_block_stop: nothing to do.
	}
}

// readEvent reads one SSE event, combining multi-line data fields.
func readEvent(scanner *bufio.Scanner) (*streamEvent, error) {
	var eventType string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event.
		if line == "" {
			if eventType != "" || len(dataLines) > 0 {
				break
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		}
		// Ignore other SSE fields (id, retry).
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if eventType == "" && len(dataLines) == 0 {
		return nil, io.EOF
	}

	var event streamEvent
	if len(dataLines) > 0 {
		if err := json.Unmarshal([]byte(strings.Join(dataLines, "\n")), &event); err != nil {
			return nil, err
		}
	}
	if eventType != "" && event.Type == "" {
		event.Type = eventType
	}
	return &event, nil
}
