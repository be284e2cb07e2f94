package csscolor

import "testing"

func TestHex(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rgb(0, 0, 0)", "#000000"},
		{"rgba(0, 0, 0, 0)", ""},
		{"rgba(0,0,0,0)", ""},
		{"rgb(99, 102, 241)", "#6366f1"},
		{"rgba(99, 102, 241, 0.5)", "#6366f1"},
		{"rgb(99 102 241 / 50%)", "#6366f1"},
		{"transparent", ""},
		{"", ""},
		{"#FFF", "#ffffff"},
		{"#6366f1", "#6366f1"},
		{"#6366f100", ""},
		{"cornflowerblue", "#6495ed"},
		{"currentcolor", ""},
		{"rgb(300, -4, 12)", "#ff000c"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Hex(tt.in); got != tt.want {
				t.Errorf("Hex(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToComputed(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"red", "rgb(255, 0, 0)"},
		{"#ff000080", "rgba(255, 0, 0, 0.502)"},
		{"transparent", "rgba(0, 0, 0, 0)"},
		{"linear-gradient(red, blue)", "linear-gradient(red, blue)"},
	}

	for _, tt := range tests {
		if got := ToComputed(tt.in); got != tt.want {
			t.Errorf("ToComputed(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
