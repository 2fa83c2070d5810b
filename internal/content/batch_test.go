package content

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDecodeBatch_PreservesOrder(t *testing.T) {
	b, err := DecodeBatch(strings.NewReader(`{"z.a":1, "a.z":{"n":[1,2]}, "m.m":"s"}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if !reflect.DeepEqual(b.Keys(), []string{"z.a", "a.z", "m.m"}) {
		t.Fatalf("keys = %v", b.Keys())
	}
	if string(b[1].Value) != `{"n":[1,2]}` {
		t.Fatalf("value = %s", b[1].Value)
	}
}

func TestDecodeBatch_DuplicateKeyLastValueFirstPosition(t *testing.T) {
	b, err := DecodeBatch(strings.NewReader(`{"a.x":1,"b.y":2,"a.x":3}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(b) != 2 || b[0].Key != "a.x" || string(b[0].Value) != "3" {
		t.Fatalf("batch = %+v", b)
	}
}

func TestDecodeBatch_RejectsNonObject(t *testing.T) {
	for _, body := range []string{``, `[]`, `"x"`, `42`, `null`, `[{"a.b":1}]`} {
		if _, err := DecodeBatch(strings.NewReader(body)); !errors.Is(err, ErrNotObject) {
			t.Errorf("DecodeBatch(%q) err = %v, want ErrNotObject", body, err)
		}
	}
}

func TestDecodeBatch_RejectsMalformed(t *testing.T) {
	for _, body := range []string{`{"a.b":}`, `{"a.b":1`, `{"a.b":1}{}`} {
		if _, err := DecodeBatch(strings.NewReader(body)); err == nil {
			t.Errorf("DecodeBatch(%q) should fail", body)
		}
	}
}
