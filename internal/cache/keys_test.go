package cache

import "testing"

func TestGeoKeyQuantization(t *testing.T) {
	// near-identical queries must share one cache entry
	a := StatusGeoKey(59.93431, 30.33508, 500.2)
	b := StatusGeoKey(59.93428, 30.33512, 499.8)
	if a != b {
		t.Fatalf("expected shared key, got %q and %q", a, b)
	}

	c := StatusGeoKey(59.9600, 30.3200, 500)
	if a == c {
		t.Fatalf("distinct queries must not collide: %q", a)
	}
}

func TestGeoKeyFormat(t *testing.T) {
	got := StatusGeoKey(59.9343, 30.3351, 100)
	want := "parking:status:geo:59.9343:30.3351:100"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSpotKeyUnderSpotPrefix(t *testing.T) {
	// bulk invalidation removes by this prefix
	if k := SpotKey(3, 7); k[:len(KeySpotPrefix)] != KeySpotPrefix {
		t.Fatalf("spot key %q not under prefix %q", k, KeySpotPrefix)
	}
}

func TestKeyClass(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{KeyStatus, "status"},
		{StatusGeoKey(59.9343, 30.3351, 100), "status_geo"},
		{LotKey(1), "location"},
		{RouteKey(1), "route"},
		{SpotKey(1, 5), "spot"},
		{"session:abc", "other"},
	}
	for _, tt := range tests {
		if got := keyClass(tt.key); got != tt.want {
			t.Errorf("keyClass(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
