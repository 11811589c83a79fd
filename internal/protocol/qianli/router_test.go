package qianli

import (
	"errors"
	"testing"
)

func TestTable_Route(t *testing.T) {
	tb := NewTable()
	var hit string
	tb.Register(ModelSystem, 0x09, func(*Frame) error { hit = "exact"; return nil })
	tb.RegisterModel(ModelSystem, func(*Frame) error { hit = "model"; return nil })

	if ok, err := tb.Route(&Frame{Model: ModelSystem, Cmd: 0x09}); !ok || err != nil || hit != "exact" {
		t.Fatalf("expected exact handler, got ok=%v err=%v hit=%s", ok, err, hit)
	}
	if ok, _ := tb.Route(&Frame{Model: ModelSystem, Cmd: 0x04}); !ok || hit != "model" {
		t.Fatalf("expected model wildcard handler, got hit=%s", hit)
	}
	if ok, _ := tb.Route(&Frame{Model: 0x7F, Cmd: 0x01}); ok {
		t.Fatalf("unknown frame should not match")
	}
}

func TestTable_RouteError(t *testing.T) {
	tb := NewTable()
	boom := errors.New("boom")
	tb.Register(ModelMeter, CmdStream, func(*Frame) error { return boom })
	ok, err := tb.Route(&Frame{Model: ModelMeter, Cmd: CmdStream})
	if !ok || !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got ok=%v err=%v", ok, err)
	}
}
