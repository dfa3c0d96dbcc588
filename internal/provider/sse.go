package provider

import (
	"bufio"
	"io"
	"strings"
)

// nextSSEData reads lines until the next "data: " payload. Blank lines and
// event/id fields are skipped. Returns io.EOF on transport end or the
// OpenAI-style "[DONE]" terminator.
func nextSSEData(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", io.EOF
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return "", io.EOF
		}
		return data, nil
	}
}

// charStream replays already-complete text one character at a time, so a
// non-streaming vendor response still honors the streaming contract.
type charStream struct {
	text []rune
	pos  int
}

func newCharStream(text string) *charStream {
	return &charStream{text: []rune(text)}
}

func (s *charStream) Next() (string, error) {
	if s.pos >= len(s.text) {
		return "", io.EOF
	}
	ch := string(s.text[s.pos])
	s.pos++
	return ch, nil
}

func (s *charStream) Close() error { return nil }
