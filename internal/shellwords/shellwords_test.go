package shellwords

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: []string{}},
		{name: "blank", input: " \t ", want: []string{}},
		{
			name:  "legacy game arguments",
			input: "--username ${auth_player_name} --session ${auth_session}  --version ${version_name}",
			want:  []string{"--username", "${auth_player_name}", "--session", "${auth_session}", "--version", "${version_name}"},
		},
		{name: "double quotes", input: `--title "Fire Launch"`, want: []string{"--title", "Fire Launch"}},
		{name: "single quotes literal", input: `'a\b' c`, want: []string{`a\b`, "c"}},
		{name: "escaped space", input: `a\ b`, want: []string{"a b"}},
		{name: "escape in double quotes", input: `"say \"hi\" \n"`, want: []string{`say "hi" \n`}},
		{name: "empty quoted word", input: `a "" b`, want: []string{"a", "", "b"}},
		{name: "adjacent quoted parts", input: `pre"mid"'post'`, want: []string{"premidpost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.input)
			if err != nil {
				t.Fatalf("Split(%q): %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{input: `"open`, want: ErrUnclosedQuote},
		{input: `'open`, want: ErrUnclosedQuote},
		{input: `trailing\`, want: ErrTrailingEscape},
	}
	for _, tt := range tests {
		if _, err := Split(tt.input); !errors.Is(err, tt.want) {
			t.Errorf("Split(%q) error = %v, want %v", tt.input, err, tt.want)
		}
	}
}

func TestJoinRoundTrip(t *testing.T) {
	args := []string{"java", "-Dpath=/opt/Fire Launch", "", "it's", `$HOME`, "plain"}
	line := Join(args)
	got, err := Split(line)
	if err != nil {
		t.Fatalf("Split(%q): %v", line, err)
	}
	if !reflect.DeepEqual(got, args) {
		t.Errorf("round trip of %q = %q", line, got)
	}
}
