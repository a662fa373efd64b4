package candleinterval

import "testing"

func TestEndpointsUnique(t *testing.T) {
	all := []Interval{Minute1, Minute3, Minute5, Minute10, Minute15, Minute30, Minute60, Minute240, Day, Week, Month}
	seen := map[string]bool{}
	for _, iv := range all {
		ep, err := iv.Endpoint()
		if err != nil {
			t.Fatalf("Endpoint(%q) error: %v", iv, err)
		}
		if seen[ep] {
			t.Fatalf("duplicate endpoint %q for interval %q", ep, iv)
		}
		seen[ep] = true
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	if _, err := Parse("2m"); err == nil {
		t.Fatal("expected error for unsupported interval")
	}
	if _, err := Parse("1h"); err == nil {
		t.Fatal("expected error for unsupported interval")
	}
}

func TestParseKnown(t *testing.T) {
	iv, err := Parse("15m")
	if err != nil {
		t.Fatal(err)
	}
	ep, err := iv.Endpoint()
	if err != nil {
		t.Fatal(err)
	}
	if ep != "/v1/candles/minutes/15" {
		t.Fatalf("got %q", ep)
	}
}
