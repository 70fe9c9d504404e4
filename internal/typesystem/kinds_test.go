package typesystem

import "testing"

func TestWider(t *testing.T) {
	cases := []struct {
		a, b, want Kind
	}{
		{KindI32, KindI32, KindI32},
		{KindI32, KindF32, KindF32},
		{KindF32, KindI32, KindF32},
		{KindF32, KindF32, KindF32},
	}
	for _, c := range cases {
		if got := Wider(c.a, c.b); got != c.want {
			t.Errorf("Wider(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestWideningIsIdempotent(t *testing.T) {
	for _, a := range []Kind{KindI32, KindF32} {
		for _, b := range []Kind{KindI32, KindF32} {
			once := Wider(a, b)
			if twice := Wider(once, b); twice != once {
				t.Errorf("Wider(Wider(%s, %s), %s) = %s, want %s", a, b, b, twice, once)
			}
		}
	}
}

func TestSlotStates(t *testing.T) {
	var s Slot[Kind]
	if _, ok := s.Get(); ok {
		t.Fatal("zero slot should be unresolved")
	}
	s.Set(KindI32, Provisional)
	if k, ok := s.Get(); !ok || k != KindI32 {
		t.Fatalf("Get() = %v, %v", k, ok)
	}
	if s.Final() {
		t.Error("provisional slot reported final")
	}
	s.Set(KindF32, Inferred)
	if !s.Final() || s.State() != Inferred {
		t.Errorf("state = %s, want inferred", s.State())
	}
	s.Clear()
	if _, ok := s.Get(); ok {
		t.Error("cleared slot still resolved")
	}
}

func TestSignatureReturnDefaultsToI32(t *testing.T) {
	sig := NewSignature("f", []string{"a", "b"}, 1)
	if sig.ReturnKind() != KindI32 {
		t.Errorf("ReturnKind() = %s, want i32", sig.ReturnKind())
	}
	if got := sig.String(); got != "f(a: ?, b: ?) -> ?" {
		t.Errorf("String() = %q", got)
	}
	sig.ParamKinds.Set([]Kind{KindF32, KindI32}, Inferred)
	sig.Return.Set(KindF32, Inferred)
	if got := sig.String(); got != "f(a: f32, b: i32) -> f32" {
		t.Errorf("String() = %q", got)
	}
	if !sig.IsComplete() {
		t.Error("signature should be complete")
	}
}
