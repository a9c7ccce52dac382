package elevconsts

import "testing"

func TestValidStatus(t *testing.T) {
	valid := []string{"Opening", "Open", "Closing", "Closed", "Between"}
	for _, s := range valid {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false, expected true", s)
		}
	}

	invalid := []string{"", "open", "Ajar", "OPEN", "Closed "}
	for _, s := range invalid {
		if ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true, expected false", s)
		}
	}
}

func TestDirectionString(t *testing.T) {
	cases := []struct {
		d    Direction
		want string
	}{
		{Up, "Up"},
		{Down, "Down"},
		{Idle, "Idle"},
		{Direction(9), "Undefined"},
	}
	for _, c := range cases {
		if got := c.d.String(); got != c.want {
			t.Errorf("Direction(%d).String() = %q, expected %q", c.d, got, c.want)
		}
	}
}
