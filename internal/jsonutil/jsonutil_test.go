package jsonutil_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/raysh454/authprobe/internal/jsonutil"
)

func TestMarshal_SortsMapKeys(t *testing.T) {
	t.Parallel()
	data, err := jsonutil.Marshal(map[string]any{"password": "x", "email": "a@b.com"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"email":"a@b.com","password":"x"}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	t.Parallel()
	in := map[string]any{
		"email": "a@b.com",
		"data":  map[string]any{"full_name": "A"},
	}
	data, err := jsonutil.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]any
	if err := jsonutil.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: %v != %v", in, out)
	}
}

func TestValid(t *testing.T) {
	t.Parallel()
	if !jsonutil.Valid([]byte(`{"ok":true}`)) {
		t.Error("expected valid JSON")
	}
	if jsonutil.Valid([]byte(`<html>`)) {
		t.Error("expected invalid JSON")
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()
	type entry struct {
		Name   string `json:"name"`
		Status int    `json:"status"`
	}
	buf := &bytes.Buffer{}
	if err := jsonutil.Encode(buf, entry{Name: "signup", Status: 201}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("expected trailing newline, got %q", buf.String())
	}
	var got entry
	if err := jsonutil.Decode(buf, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != "signup" || got.Status != 201 {
		t.Errorf("unexpected decode: %+v", got)
	}
}
