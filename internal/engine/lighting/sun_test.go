package lighting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSunDirection(t *testing.T) {
	tests := []struct {
		lon, lat float32
		want     mgl32.Vec3
	}{
		{0, 0, mgl32.Vec3{0, 0, 1}},
		{90, 0, mgl32.Vec3{1, 0, 0}},
		{180, 0, mgl32.Vec3{0, 0, -1}},
		{0, 90, mgl32.Vec3{0, 1, 0}},
		{45, 45, mgl32.Vec3{0.5, 0.70710677, 0.5}},
	}
	for _, tt := range tests {
		got := SunDirection(tt.lon, tt.lat)
		if !got.ApproxEqualThreshold(tt.want, 1e-5) {
			t.Errorf("SunDirection(%v, %v) = %v, want %v", tt.lon, tt.lat, got, tt.want)
		}
		if l := got.Len(); l < 0.99999 || l > 1.00001 {
			t.Errorf("SunDirection(%v, %v) length = %v", tt.lon, tt.lat, l)
		}
	}
}
