package bridge

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FrameFromPayload renders a data payload as exactly one outbound line. A
// JSON string is written as its text unless the text holds a line break;
// that and any other payload is written as compact JSON, where line breaks
// stay escaped.
func FrameFromPayload(payload json.RawMessage) []byte {
	var text string
	if err := json.Unmarshal(payload, &text); err == nil && !strings.ContainsAny(text, "\r\n") {
		return append([]byte(text), '\n')
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		buf.Reset()
		buf.Write(bytes.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return ' '
			}
			return r
		}, payload))
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}
