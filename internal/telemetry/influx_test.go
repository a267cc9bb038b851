package telemetry

import (
	"errors"
	"fmt"
	"testing"

	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"
)

func TestTransientQueryErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad gateway", &influxhttp.Error{StatusCode: 502}, true},
		{"service unavailable", &influxhttp.Error{StatusCode: 503}, true},
		{"gateway timeout", &influxhttp.Error{StatusCode: 504}, true},
		{"unauthorized", &influxhttp.Error{StatusCode: 401}, false},
		{"bad flux", &influxhttp.Error{StatusCode: 400}, false},
		{"wrapped bad gateway", fmt.Errorf("query: %w", &influxhttp.Error{StatusCode: 502}), true},
		{"plain error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Fatalf("isTransient = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   int
		wantOK bool
	}{
		{"int64", int64(7), 7, true},
		{"float64", float64(4.0), 4, true},
		{"float64 truncates", float64(4.9), 4, true},
		{"string", "12", 12, true},
		{"bad string", "twelve", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseInt(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("parseInt(%v) = %d,%v, want %d,%v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
