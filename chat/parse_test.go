package chat

import (
	"reflect"
	"testing"

	"github.com/linelight/backend/engine"
)

func TestParseMessage(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		isMod bool
		want  engine.Event
	}{
		{
			name: "single line",
			text: "!line 42",
			want: engine.ChatHighlight{User: "alice", StartLine: 42, EndLine: 42},
		},
		{
			name: "line range",
			text: "!line 3-7",
			want: engine.ChatHighlight{User: "alice", StartLine: 3, EndLine: 7},
		},
		{
			name: "with comment",
			text: "!line 10 off by one here",
			want: engine.ChatHighlight{User: "alice", StartLine: 10, EndLine: 10, Comment: "off by one here"},
		},
		{
			name: "explicit file",
			text: "!line main.go 5-6 nil check",
			want: engine.ChatHighlight{User: "alice", StartLine: 5, EndLine: 6, File: "main.go", Comment: "nil check"},
		},
		{
			name: "highlight alias",
			text: "!highlight 8",
			want: engine.ChatHighlight{User: "alice", StartLine: 8, EndLine: 8},
		},
		{
			name: "uppercase command",
			text: "!LINE 4",
			want: engine.ChatHighlight{User: "alice", StartLine: 4, EndLine: 4},
		},
		{
			name: "unline",
			text: "!unline 42",
			want: engine.ChatUnhighlight{Line: 42},
		},
		{
			name: "unline with file",
			text: "!unhighlight main.go 42",
			want: engine.ChatUnhighlight{Line: 42, File: "main.go"},
		},
		{
			name: "unline with trailing file",
			text: "!unline 42 main.go",
			want: engine.ChatUnhighlight{Line: 42, File: "main.go"},
		},
		{
			name:  "clear as moderator",
			text:  "!clear",
			isMod: true,
			want:  engine.ChatClear{},
		},
		{name: "clear as viewer", text: "!clear"},
		{name: "ordinary chatter", text: "nice stream"},
		{name: "bare command", text: "!line"},
		{name: "zero line", text: "!line 0"},
		{name: "negative line", text: "!line -3"},
		{name: "garbage line", text: "!line abc"},
		{name: "file without line", text: "!line main.go"},
		{name: "unline with range", text: "!unline 3-7"},
		{name: "unline with trailing words", text: "!unline 3 not a file"},
		{name: "unline with file on both sides", text: "!unline a.go 3 b.go"},
		{name: "empty message", text: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseMessage("alice", tc.isMod, tc.text)
			if tc.want == nil {
				if ok {
					t.Fatalf("recognized %q as %#v", tc.text, got)
				}
				return
			}
			if !ok {
				t.Fatalf("did not recognize %q", tc.text)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseMessage(%q) = %#v, want %#v", tc.text, got, tc.want)
			}
		})
	}
}

func TestParseLineSpec(t *testing.T) {
	if s, e, ok := parseLineSpec("12-12"); !ok || s != 12 || e != 12 {
		t.Errorf("12-12 parsed as %d,%d,%v", s, e, ok)
	}
	if _, _, ok := parseLineSpec("3-"); ok {
		t.Error("dangling dash accepted")
	}
	if _, _, ok := parseLineSpec("3-0"); ok {
		t.Error("zero end line accepted")
	}
}
