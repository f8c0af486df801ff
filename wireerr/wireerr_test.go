package wireerr

import "testing"

func TestRoundTrip(t *testing.T) {
	kinds := []*Error{NoHandler, SessionAlreadyActive, Decode, Grpc, Internal}
	for _, e := range kinds {
		code := ToCode(e)
		got := FromCode(code)
		if got.Kind != e.Kind || got.Code != e.Code {
			t.Errorf("round trip mismatch for %v: code=%d got=%+v", e, code, got)
		}
	}
}

func TestFromCodeUnknown(t *testing.T) {
	got := FromCode(99)
	if got.Kind != KindUnknown || got.Code != 99 {
		t.Errorf("FromCode(99) = %+v", got)
	}
}

func TestFixedCodes(t *testing.T) {
	cases := map[*Error]uint32{
		NoHandler:            1,
		SessionAlreadyActive: 2,
		Decode:               3,
		Grpc:                 4,
		Internal:             5,
	}
	for e, code := range cases {
		if ToCode(e) != code {
			t.Errorf("ToCode(%v) = %d, want %d", e, ToCode(e), code)
		}
	}
}

func TestTransportPassthrough(t *testing.T) {
	e := Transport(42)
	if e.Kind != KindTransport || e.Code != 42 {
		t.Errorf("Transport(42) = %+v", e)
	}
}
