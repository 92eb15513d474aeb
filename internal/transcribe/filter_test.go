package transcribe

import "testing"

func TestCleanTranscriptPassesNormalSpeech(t *testing.T) {
	in := "turn on the lights please"
	if got := CleanTranscript(in); got != in {
		t.Fatalf("CleanTranscript(%q) = %q, want unchanged", in, got)
	}
}

func TestCleanTranscriptTrimsWhitespace(t *testing.T) {
	if got := CleanTranscript("  hello there  "); got != "hello there" {
		t.Fatalf("CleanTranscript() = %q, want %q", got, "hello there")
	}
}

func TestCleanTranscriptHalfDuplication(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "eight-word duplication removed",
			in:   "can you hear me can you hear me",
			want: "",
		},
		{
			name: "case-insensitive duplication removed",
			in:   "Turn On The Lights turn on the lights",
			want: "",
		},
		{
			name: "short echo kept",
			in:   "yes yes",
			want: "yes yes",
		},
		{
			name: "six words exactly kept",
			in:   "one two three one two three",
			want: "one two three one two three",
		},
		{
			name: "odd word count kept",
			in:   "a b c a b c c",
			want: "a b c a b c c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTranscript(tt.in); got != tt.want {
				t.Fatalf("CleanTranscript(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanTranscriptHallucinations(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "short filler removed",
			in:   "Thanks for watching!",
			want: "",
		},
		{
			name: "subscribe removed",
			in:   "please subscribe",
			want: "",
		},
		{
			name: "long sentence quoting filler kept",
			in:   "he literally ended the meeting by saying thank you for watching everyone",
			want: "he literally ended the meeting by saying thank you for watching everyone",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTranscript(tt.in); got != tt.want {
				t.Fatalf("CleanTranscript(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanTranscriptIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"turn on the lights please",
		"can you hear me can you hear me",
		"thanks for watching",
	}
	for _, in := range inputs {
		once := CleanTranscript(in)
		twice := CleanTranscript(once)
		if once != twice {
			t.Fatalf("CleanTranscript not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestActionable(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"hello", false},
		{"hello there", true},
		{"turn on the lights", true},
	}
	for _, tt := range tests {
		if got := Actionable(tt.in); got != tt.want {
			t.Fatalf("Actionable(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
