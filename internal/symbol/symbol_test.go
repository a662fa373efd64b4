package symbol

import "testing"

func TestNormalizeVariants(t *testing.T) {
	cases := []string{"btc-krw", "BTC_KRW", "Btc_Krw", "btc_krw"}
	for _, c := range cases {
		got, err := Normalize(c)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", c, err)
		}
		if got != "BTC_KRW" {
			t.Fatalf("Normalize(%q) = %q, want BTC_KRW", c, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	s, err := Normalize("btc-krw")
	if err != nil {
		t.Fatal(err)
	}
	again, err := Normalize(string(s))
	if err != nil {
		t.Fatal(err)
	}
	if s != again {
		t.Fatalf("normalize not idempotent: %q != %q", s, again)
	}
}

func TestWireRoundTrip(t *testing.T) {
	s := MustNormalize("btc-krw")
	wire := s.Wire()
	if wire != "KRW-BTC" {
		t.Fatalf("Wire() = %q, want KRW-BTC", wire)
	}
	back, err := FromWire(wire)
	if err != nil {
		t.Fatal(err)
	}
	if back != s {
		t.Fatalf("FromWire(Wire(s)) = %q, want %q", back, s)
	}
}

func TestNormalizeInvalid(t *testing.T) {
	if _, err := Normalize("btckrw"); err == nil {
		t.Fatal("expected error for symbol without separator")
	}
}
