package models

import "testing"

func TestHandRequirement_Matches(t *testing.T) {
	cases := []struct {
		req       HandRequirement
		observed  Handedness
		isTwoHand bool
		want      bool
	}{
		{HandRequirementAny, HandLeft, false, true},
		{HandRequirementBoth, HandLeft, true, true},
		{HandRequirementBoth, HandLeft, false, false},
		{HandRequirementLeft, HandLeft, false, true},
		{HandRequirementLeft, HandRight, false, false},
		{HandRequirementRight, HandRight, false, true},
		{HandRequirementRight, HandRight, true, false},
	}
	for _, c := range cases {
		if got := c.req.Matches(c.observed, c.isTwoHand); got != c.want {
			t.Fatalf("%s.Matches(%s, %v) = %v, want %v", c.req, c.observed, c.isTwoHand, got, c.want)
		}
	}
}
