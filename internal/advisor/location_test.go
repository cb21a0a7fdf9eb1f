package advisor

import "testing"

func TestExtractLatLon(t *testing.T) {
	cases := []struct {
		in       string
		lat, lon float64
		ok       bool
	}{
		{"19.0760, 72.8777", 19.0760, 72.8777, true},
		{"19,72", 19, 72, true},
		{"-33.86, 151.21", -33.86, 151.21, true},
		{"lat: 19.07 lon: 72.87", 19.07, 72.87, true},
		{"LAT=19.07, LON=72.87", 19.07, 72.87, true},
		{"my field is at 20.5,78.9 near the river", 20.5, 78.9, true},
		{"Nashik", 0, 0, false},
		{"", 0, 0, false},
		{"pin code 422001", 0, 0, false},
		{"200, 300", 0, 0, false},
		{"91.0, 72.8", 0, 0, false},
	}
	for _, tc := range cases {
		lat, lon, ok := ExtractLatLon(tc.in)
		if ok != tc.ok {
			t.Fatalf("ExtractLatLon(%q) ok = %v, expected %v", tc.in, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if lat != tc.lat || lon != tc.lon {
			t.Fatalf("ExtractLatLon(%q) = %v, %v, expected %v, %v", tc.in, lat, lon, tc.lat, tc.lon)
		}
	}
}

func TestExtractLatLonPrefersLabeledPair(t *testing.T) {
	lat, lon, ok := ExtractLatLon("sent 10,20 earlier but lat 19.07, lon 72.87 is right")
	if !ok || lat != 19.07 || lon != 72.87 {
		t.Fatalf("got %v, %v, %v", lat, lon, ok)
	}
}
