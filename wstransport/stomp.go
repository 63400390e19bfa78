package wstransport

import (
	"bytes"
	"fmt"
	"strings"
)

// STOMP 1.2 commands used by the client/server exchange.
const (
	cmdConnect     = "CONNECT"
	cmdConnected   = "CONNECTED"
	cmdSubscribe   = "SUBSCRIBE"
	cmdUnsubscribe = "UNSUBSCRIBE"
	cmdSend        = "SEND"
	cmdMessage     = "MESSAGE"
	cmdError       = "ERROR"
	cmdReceipt     = "RECEIPT"
)

const (
	hdrAcceptVersion = "accept-version"
	hdrHost          = "host"
	hdrID            = "id"
	hdrDestination   = "destination"
	hdrContentType   = "content-type"
	hdrMessage       = "message"
)

// frame is one STOMP frame. Headers keep their wire order.
type frame struct {
	command string
	headers [][2]string
	body    []byte
}

func (f *frame) header(name string) (string, bool) {
	for _, h := range f.headers {
		if h[0] == name {
			return h[1], true
		}
	}
	return "", false
}

// escapeHeader applies the STOMP 1.2 header escaping. CONNECT and CONNECTED
// frames are exchanged unescaped per the spec, but none of their header
// values contain reserved characters here, so one codepath suffices.
func escapeHeader(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "\r", "\\r", "\n", "\\n", ":", "\\c")
	return r.Replace(s)
}

func unescapeHeader(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("stomp: dangling escape in header %q", s)
		}
		switch s[i] {
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("stomp: invalid escape \\%c in header %q", s[i], s)
		}
	}
	return b.String(), nil
}

// marshalFrame renders a frame for the wire, NUL terminated.
func marshalFrame(f frame) []byte {
	var b bytes.Buffer
	b.WriteString(f.command)
	b.WriteByte('\n')
	for _, h := range f.headers {
		b.WriteString(escapeHeader(h[0]))
		b.WriteByte(':')
		b.WriteString(escapeHeader(h[1]))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.Write(f.body)
	b.WriteByte(0)
	return b.Bytes()
}

// isHeartbeat reports whether a websocket message is a STOMP heart-beat
// rather than a frame.
func isHeartbeat(data []byte) bool {
	trimmed := bytes.Trim(data, "\r\n")
	return len(trimmed) == 0
}

// parseFrame decodes one frame from a websocket message.
func parseFrame(data []byte) (frame, error) {
	// Tolerate leading heart-beat newlines before the command.
	for len(data) > 0 && (data[0] == '\n' || data[0] == '\r') {
		data = data[1:]
	}

	head, body, found := bytes.Cut(data, []byte("\n\n"))
	if !found {
		return frame{}, fmt.Errorf("stomp: frame without header terminator")
	}

	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return frame{}, fmt.Errorf("stomp: frame without command")
	}

	f := frame{command: lines[0]}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return frame{}, fmt.Errorf("stomp: malformed header line %q", line)
		}
		uname, err := unescapeHeader(name)
		if err != nil {
			return frame{}, err
		}
		uvalue, err := unescapeHeader(value)
		if err != nil {
			return frame{}, err
		}
		// STOMP keeps only the first occurrence of a repeated header;
		// appending preserves that via the header() lookup order.
		f.headers = append(f.headers, [2]string{uname, uvalue})
	}

	if i := bytes.IndexByte(body, 0); i >= 0 {
		body = body[:i]
	}
	if len(body) > 0 {
		f.body = body
	}
	return f, nil
}
