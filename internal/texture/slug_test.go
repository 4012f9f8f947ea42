package texture

import "testing"

func TestSlugify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "Blue Marble", want: "blue-marble"},
		{name: "punctuation collapses", input: "Blue  Marble!", want: "blue-marble"},
		{name: "leading and trailing junk", input: "  --Rusty Metal-- ", want: "rusty-metal"},
		{name: "accents fold to ascii", input: "Béton Brût", want: "beton-brut"},
		{name: "mixed symbols", input: "Wood_Plank #4 (v2)", want: "wood-plank-4-v2"},
		{name: "digits kept", input: "4K Gravel 02", want: "4k-gravel-02"},
		{name: "only symbols", input: "!!!", want: ""},
		{name: "empty", input: "", want: ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Slugify(tc.input); got != tc.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
