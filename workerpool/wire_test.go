// File: workerpool/wire_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		Module:   "users",
		Function: "create",
		Args:     map[string]any{"name": "ada", "age": int64(30), "active": true},
	}
	wire, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ReadRequest(bytes.NewReader(wire))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Module != "users" || got.Function != "create" {
		t.Fatalf("unexpected module/function: %+v", got)
	}
	if got.Args["name"] != "ada" || got.Args["age"] != int64(30) || got.Args["active"] != true {
		t.Fatalf("unexpected args: %+v", got.Args)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &Response{ID: 42, StatusCode: 200, Success: true, Body: []byte(`{"ok":true}`)}
	wire := EncodeResponse(resp)
	got, err := ReadResponse(bytes.NewReader(wire))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != 42 || got.StatusCode != 200 || !got.Success {
		t.Fatalf("unexpected response: %+v", got)
	}
	if string(got.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", got.Body)
	}
}

func TestErrorResponseCarriesMessage(t *testing.T) {
	resp := &Response{ID: 7, StatusCode: 500, Success: false, ErrMessage: "boom"}
	wire := EncodeResponse(resp)
	got, err := ReadResponse(bytes.NewReader(wire))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Success || got.ErrMessage != "boom" {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestTLVRoundTripAllTypes(t *testing.T) {
	args := map[string]any{
		"n":   nil,
		"t":   true,
		"f":   false,
		"i":   int64(-123),
		"fl":  3.5,
		"s":   "hello",
		"b":   []byte{1, 2, 3},
	}
	wire, err := EncodeArgsTLV(args)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeArgsTLV(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(args) {
		t.Fatalf("expected %d args, got %d", len(args), len(got))
	}
	if got["i"] != int64(-123) || got["fl"] != 3.5 || got["s"] != "hello" {
		t.Fatalf("unexpected decoded args: %+v", got)
	}
	if b, ok := got["b"].([]byte); !ok || !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Fatalf("unexpected bytes arg: %+v", got["b"])
	}
}

func TestDecodeArgsTLVRejectsBadMagic(t *testing.T) {
	if _, err := DecodeArgsTLV([]byte{0x00, 0x00, 0x00}); err == nil {
		t.Fatal("expected error for missing magic byte")
	}
}

func TestEncodeArgsTLVRejectsUnsupportedType(t *testing.T) {
	if _, err := EncodeArgsTLV(map[string]any{"x": struct{}{}}); err == nil {
		t.Fatal("expected error for unsupported argument type")
	}
}
