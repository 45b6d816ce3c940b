package realtime

import (
	"bytes"
	"fmt"
	"strings"
)

// Minimal STOMP 1.2 framing, enough to talk to the contest service's
// broker over a raw websocket: CONNECT/SUBSCRIBE/DISCONNECT out,
// CONNECTED/MESSAGE/ERROR in.

const (
	cmdConnect    = "CONNECT"
	cmdConnected  = "CONNECTED"
	cmdSubscribe  = "SUBSCRIBE"
	cmdDisconnect = "DISCONNECT"
	cmdMessage    = "MESSAGE"
	cmdError      = "ERROR"
)

type frame struct {
	command string
	headers [][2]string
	body    []byte
}

func newFrame(command string, headers ...[2]string) *frame {
	return &frame{command: command, headers: headers}
}

// header returns the first value for name, or "".
func (f *frame) header(name string) string {
	for _, h := range f.headers {
		if h[0] == name {
			return h[1]
		}
	}
	return ""
}

func (f *frame) marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.command)
	buf.WriteByte('\n')
	for _, h := range f.headers {
		buf.WriteString(h[0])
		buf.WriteByte(':')
		buf.WriteString(h[1])
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// parseFrame decodes a server frame. A bare newline is a heartbeat and
// parses to (nil, nil).
func parseFrame(data []byte) (*frame, error) {
	data = bytes.TrimSuffix(data, []byte{0})
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	head, body, found := bytes.Cut(data, []byte("\n\n"))
	if !found {
		return nil, fmt.Errorf("malformed frame: missing header terminator")
	}

	lines := strings.Split(string(head), "\n")
	f := &frame{command: strings.TrimRight(lines[0], "\r"), body: body}
	if f.command == "" {
		return nil, fmt.Errorf("malformed frame: empty command")
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		f.headers = append(f.headers, [2]string{name, value})
	}
	return f, nil
}
