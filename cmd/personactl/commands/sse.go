package commands

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// sseFrame is one parsed server-sent event.
type sseFrame struct {
	Event string
	Data  []byte
}

// sseParser incrementally reads SSE frames off a stream. Comment lines
// (heartbeats) are skipped; a frame is returned at each blank-line
// boundary.
type sseParser struct {
	reader *bufio.Reader
}

func newSSEParser(r io.Reader) *sseParser {
	return &sseParser{reader: bufio.NewReader(r)}
}

func (p *sseParser) Next() (sseFrame, error) {
	var eventType string
	var dataLines []string

	flush := func() (sseFrame, error) {
		if len(dataLines) == 0 && eventType == "" {
			return sseFrame{}, io.EOF
		}
		return sseFrame{Event: eventType, Data: []byte(strings.Join(dataLines, "\n"))}, nil
	}

	for {
		line, err := p.reader.ReadString('\n')
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return sseFrame{}, err
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		switch {
		case line == "":
			if len(dataLines) > 0 || eventType != "" {
				return sseFrame{Event: eventType, Data: []byte(strings.Join(dataLines, "\n"))}, nil
			}
			if eof {
				return sseFrame{}, io.EOF
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		default:
			field, value := splitSSEField(line)
			switch field {
			case "event":
				eventType = value
			case "data":
				dataLines = append(dataLines, value)
			}
		}

		if eof {
			return flush()
		}
	}
}

func splitSSEField(line string) (field, value string) {
	index := strings.IndexByte(line, ':')
	if index < 0 {
		return line, ""
	}
	field = line[:index]
	value = line[index+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
