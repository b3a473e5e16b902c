package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for _, code := range []string{
		ErrProtoBadRequest, ErrBadRequest, ErrOverlap,
		ErrRotationBlocked, ErrNotFound, ErrTypeInUse, ErrInternal,
	} {
		if !IsKnownCode(code) {
			t.Fatalf("%s not known", code)
		}
	}
	if !IsKnownCode("") {
		t.Fatal("empty code should pass")
	}
	if IsKnownCode("E_NOPE") {
		t.Fatal("unknown code accepted")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"ACT","protocol_version":"1.0"}`))
	if err != nil || m.Type != TypeAct || m.ProtocolVersion != Version {
		t.Fatalf("base: %+v, %v", m, err)
	}
	if _, err := DecodeBase([]byte(`{`)); err == nil {
		t.Fatal("garbage decoded")
	}
}
