package signalnode

import (
	"math"
	"testing"

	"github.com/friendsincode/gesturedeck/internal/models"
)

func TestCrossfaderConstantPowerLaw(t *testing.T) {
	cases := []float64{0, 0.25, 0.5, 0.75, 1.0}
	for _, p := range cases {
		gainA, gainB := GainsForCurve(models.CurveConstantPower, p)
		sum := gainA*gainA + gainB*gainB
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("position %v: gA^2+gB^2 = %v, want 1", p, sum)
		}
	}
}

func TestCrossfaderLinearEndpoints(t *testing.T) {
	gainA, gainB := GainsForCurve(models.CurveLinear, 0)
	if gainA != 1 || gainB != 0 {
		t.Fatalf("position 0: got (%v,%v), want (1,0)", gainA, gainB)
	}
	gainA, gainB = GainsForCurve(models.CurveLinear, 1)
	if gainA != 0 || gainB != 1 {
		t.Fatalf("position 1: got (%v,%v), want (0,1)", gainA, gainB)
	}
}

func TestCrossfaderCenterConstantPower(t *testing.T) {
	cf := NewCrossfader()
	cf.SetPosition(0.5)
	gainA, gainB := cf.Gains()
	want := math.Sqrt2 / 2
	if math.Abs(gainA-want) > 1e-9 || math.Abs(gainB-want) > 1e-9 {
		t.Fatalf("center gains = (%v,%v), want (%v,%v)", gainA, gainB, want, want)
	}
}

func TestCrossfaderSetPositionClamps(t *testing.T) {
	cf := NewCrossfader()
	cf.SetPosition(-1)
	if cf.Position() != 0 {
		t.Fatalf("position clamped low = %v, want 0", cf.Position())
	}
	cf.SetPosition(2)
	if cf.Position() != 1 {
		t.Fatalf("position clamped high = %v, want 1", cf.Position())
	}
}

func TestCrossfaderUnknownCurveIgnored(t *testing.T) {
	cf := NewCrossfader()
	cf.SetCurve(models.CurveConstantPower)
	cf.SetCurve(models.CrossfaderCurve("bogus"))
	if cf.Curve() != models.CurveConstantPower {
		t.Fatalf("curve changed to unrecognized value: %v", cf.Curve())
	}
}
