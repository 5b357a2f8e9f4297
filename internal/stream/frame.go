// Package stream decodes the line-delimited completion stream served by POST /api/ai/chat.
package stream

import (
	"encoding/json"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
	endSentinel  = "[END]"
)

// FrameKind classifies one line of the stream
type FrameKind int

const (
	// FrameSkip is a blank line or a data frame that carries no content.
	FrameSkip FrameKind = iota
	// FrameDone terminates the stream.
	FrameDone
	// FrameDelta carries a content fragment.
	FrameDelta
	// FrameInvalid is a data frame whose payload is not valid JSON.
	FrameInvalid
	// FrameRaw is a non-blank line without the data prefix.
	FrameRaw
)

// Frame is one decoded line
type Frame struct {
	Kind    FrameKind
	Content string
}

// chunk mirrors the subset of a chat completion chunk the client reads
type chunk struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Delta delta `json:"delta"`
}

type delta struct {
	Content string `json:"content"`
}

// ParseLine decodes a single stream line.
func ParseLine(line string) Frame {
	line = strings.TrimSpace(line)
	if line == "" {
		return Frame{Kind: FrameSkip}
	}

	if line == endSentinel {
		return Frame{Kind: FrameDone}
	}

	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return Frame{Kind: FrameRaw, Content: line}
	}

	payload = strings.TrimSpace(payload)
	if payload == doneSentinel || payload == endSentinel {
		return Frame{Kind: FrameDone}
	}

	var c chunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Frame{Kind: FrameInvalid, Content: payload}
	}
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == "" {
		return Frame{Kind: FrameSkip}
	}
	return Frame{Kind: FrameDelta, Content: c.Choices[0].Delta.Content}
}

// EncodeDelta renders a content fragment as a data frame, including the blank separator line.
func EncodeDelta(content string) ([]byte, error) {
	c := chunk{Choices: []choice{{Delta: delta{Content: content}}}}
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return []byte(dataPrefix + string(payload) + "\n\n"), nil
}

// DoneFrame is the terminating frame written by the server.
func DoneFrame() []byte {
	return []byte(dataPrefix + doneSentinel + "\n\n")
}
