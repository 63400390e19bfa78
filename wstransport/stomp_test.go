package wstransport

import (
	"bytes"
	"testing"
)

func TestMarshalAndParseSubscribeFrame(t *testing.T) {
	f := frame{
		command: cmdSubscribe,
		headers: [][2]string{
			{hdrID, "sub-1"},
			{hdrDestination, "/topic/game/G1"},
		},
	}

	parsed, err := parseFrame(marshalFrame(f))
	if err != nil {
		t.Fatal(err)
	}
	if parsed.command != cmdSubscribe {
		t.Fatalf("command = %s", parsed.command)
	}
	if dest, _ := parsed.header(hdrDestination); dest != "/topic/game/G1" {
		t.Fatalf("destination = %s", dest)
	}
	if len(parsed.body) != 0 {
		t.Fatalf("body = %q", parsed.body)
	}
}

func TestParseMessageFrameWithBody(t *testing.T) {
	wire := "MESSAGE\ndestination:/topic/lobby\nmessage-id:7\nsubscription:sub-1\n\n" +
		`{"type":"CREATED","room":{"roomId":"R1"}}` + "\x00"

	f, err := parseFrame([]byte(wire))
	if err != nil {
		t.Fatal(err)
	}
	if f.command != cmdMessage {
		t.Fatalf("command = %s", f.command)
	}
	if !bytes.Contains(f.body, []byte(`"roomId":"R1"`)) {
		t.Fatalf("body = %q", f.body)
	}
}

func TestParseFrameToleratesLeadingHeartbeats(t *testing.T) {
	f, err := parseFrame([]byte("\n\nCONNECTED\nversion:1.2\n\n\x00"))
	if err != nil {
		t.Fatal(err)
	}
	if f.command != cmdConnected {
		t.Fatalf("command = %s", f.command)
	}
}

func TestHeaderEscaping(t *testing.T) {
	f := frame{
		command: cmdError,
		headers: [][2]string{{hdrMessage, "bad destination:\nnot found"}},
	}

	parsed, err := parseFrame(marshalFrame(f))
	if err != nil {
		t.Fatal(err)
	}
	if msg, _ := parsed.header(hdrMessage); msg != "bad destination:\nnot found" {
		t.Fatalf("round-tripped header = %q", msg)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for name, wire := range map[string]string{
		"no terminator": "MESSAGE\ndestination:/x\nbody without blank line",
		"empty":         "",
		"bad header":    "MESSAGE\nheader-without-colon\n\n\x00",
		"bad escape":    "MESSAGE\nmessage:oops\\x\n\n\x00",
	} {
		if _, err := parseFrame([]byte(wire)); err == nil {
			t.Errorf("%s: expected parse error", name)
		}
	}
}

func TestIsHeartbeat(t *testing.T) {
	if !isHeartbeat([]byte("\n")) || !isHeartbeat([]byte("\r\n")) {
		t.Fatal("newline not treated as heart-beat")
	}
	if isHeartbeat([]byte("MESSAGE\n\n\x00")) {
		t.Fatal("frame misdetected as heart-beat")
	}
}
