package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// lineFunc decodes one line of a streaming body. It returns the text increment
// (possibly empty) and whether the line terminates the stream. An error means
// the line is malformed and should be skipped.
type lineFunc func(line []byte) (text string, done bool, err error)

// bodyFunc decodes a complete non-streaming body into the untrimmed text.
type bodyFunc func(raw []byte) (string, error)

// codec is the Builder/Decoder pair of one Style.
type codec struct {
	build      buildFunc
	decodeBody bodyFunc
	decodeLine lineFunc
}

var codecs = map[Style]codec{
	StyleNativeOllama: {
		build:      buildOllama,
		decodeBody: decodeOllamaBody,
		decodeLine: decodeOllamaLine,
	},
	StyleOpenAIChat: {
		build:      buildOpenAIChat,
		decodeBody: decodeChatBody,
		decodeLine: decodeChatLine,
	},
}

var errMissingField = errors.New("missing field")

type ollamaGenerateResponse struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

func decodeOllamaBody(raw []byte) (string, error) {
	var resp ollamaGenerateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", errMissingField
	}
	return *resp.Response, nil
}

// decodeOllamaLine: every non-empty line is a JSON fragment; done:true ends the stream.
func decodeOllamaLine(line []byte) (string, bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return "", false, nil
	}
	var frag ollamaGenerateResponse
	if err := json.Unmarshal(line, &frag); err != nil {
		return "", false, err
	}
	var text string
	if frag.Response != nil {
		text = *frag.Response
	}
	return text, frag.Done, nil
}

type chatCompletionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func decodeChatBody(raw []byte) (string, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return "", errMissingField
	}
	return *resp.Choices[0].Message.Content, nil
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

const sseDone = "[DONE]"

// decodeChatLine: only "data:" lines count, "data: [DONE]" ends the stream.
// Event names, ids and ":" comments are ignored.
func decodeChatLine(line []byte) (string, bool, error) {
	s := strings.TrimSpace(string(line))
	data, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", false, nil
	}
	data = strings.TrimSpace(data)
	if data == sseDone {
		return "", true, nil
	}
	if data == "" {
		return "", false, nil
	}
	var chunk chatCompletionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, err
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	return chunk.Choices[0].Delta.Content, false, nil
}
