package chat

import (
	"strconv"
	"strings"

	"github.com/linelight/backend/engine"
)

// ParseMessage recognizes highlight commands in a chat message. It returns
// the routed event and true, or nil and false for ordinary chatter.
// Malformed commands (bad line numbers, "!clear" from a non-moderator) are
// treated as ordinary chatter too.
func ParseMessage(user string, isMod bool, text string) (engine.Event, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, false
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "!line", "!highlight":
		file, start, end, rest, ok := parseTarget(args)
		if !ok {
			return nil, false
		}
		return engine.ChatHighlight{
			User:      user,
			StartLine: start,
			EndLine:   end,
			File:      file,
			Comment:   strings.Join(rest, " "),
		}, true
	case "!unline", "!unhighlight":
		file, start, end, rest, ok := parseTarget(args)
		if !ok || start != end {
			return nil, false
		}
		// The file may also trail the line number: "!unline 3 main.go".
		if file == "" && len(rest) == 1 {
			file, rest = rest[0], nil
		}
		if len(rest) > 0 {
			return nil, false
		}
		return engine.ChatUnhighlight{Line: start, File: file}, true
	case "!clear":
		if !isMod || len(args) > 0 {
			return nil, false
		}
		return engine.ChatClear{}, true
	}
	return nil, false
}

// parseTarget consumes an optional file name followed by a mandatory line
// spec ("<n>" or "<n>-<m>") from args, returning whatever follows.
func parseTarget(args []string) (file string, start, end int, rest []string, ok bool) {
	if len(args) == 0 {
		return "", 0, 0, nil, false
	}
	if start, end, ok = parseLineSpec(args[0]); ok {
		return "", start, end, args[1:], true
	}
	if len(args) < 2 {
		return "", 0, 0, nil, false
	}
	if start, end, ok = parseLineSpec(args[1]); !ok {
		return "", 0, 0, nil, false
	}
	return args[0], start, end, args[2:], true
}

func parseLineSpec(s string) (start, end int, ok bool) {
	first, rest, dashed := strings.Cut(s, "-")
	start, err := strconv.Atoi(first)
	if err != nil || start <= 0 {
		return 0, 0, false
	}
	if !dashed {
		return start, start, true
	}
	end, err = strconv.Atoi(rest)
	if err != nil || end <= 0 {
		return 0, 0, false
	}
	return start, end, true
}
