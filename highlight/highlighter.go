package highlight

import "strconv"

// Highlighter owns the ordered collection of highlights for one document.
// Insertion order is display order. A Highlighter survives emptying via
// targeted removals; it only goes away when its document closes untitled or
// the whole registry resets.
type Highlighter struct {
	docKey      string
	displayName string
	highlights  []Highlight
}

// NewHighlighter creates an empty Highlighter for a document.
func NewHighlighter(docKey, displayName string) *Highlighter {
	return &Highlighter{docKey: docKey, displayName: displayName}
}

// DocumentKey returns the document's stable file identity.
func (h *Highlighter) DocumentKey() string { return h.docKey }

// DisplayName returns the human-facing document name used in picker entries.
func (h *Highlighter) DisplayName() string { return h.displayName }

// Len returns the number of highlights held.
func (h *Highlighter) Len() int { return len(h.highlights) }

// Highlights returns a copy of the highlights in insertion order.
func (h *Highlighter) Highlights() []Highlight {
	out := make([]Highlight, len(h.highlights))
	copy(out, h.highlights)
	return out
}

// find returns the index of the highlight with the given (user, startLine)
// pair, or -1. The pair is the per-document uniqueness key.
func (h *Highlighter) find(user string, startLine int) int {
	for i, hl := range h.highlights {
		if hl.User == user && hl.StartLine == startLine {
			return i
		}
	}
	return -1
}

// add appends a highlight unless one with the same (user, startLine) pair
// already exists. Reports whether the highlight was stored.
func (h *Highlighter) add(hl Highlight) bool {
	if h.find(hl.User, hl.StartLine) >= 0 {
		return false
	}
	h.highlights = append(h.highlights, hl)
	return true
}

// removeByLine removes every highlight whose start line matches.
// Reports whether anything was removed.
func (h *Highlighter) removeByLine(line int) bool {
	kept := h.highlights[:0]
	removed := false
	for _, hl := range h.highlights {
		if hl.StartLine == line {
			removed = true
			continue
		}
		kept = append(kept, hl)
	}
	h.highlights = kept
	return removed
}

// removeByUser removes every highlight attributed to user and returns the
// count removed.
func (h *Highlighter) removeByUser(user string) int {
	kept := h.highlights[:0]
	removed := 0
	for _, hl := range h.highlights {
		if hl.User == user {
			removed++
			continue
		}
		kept = append(kept, hl)
	}
	h.highlights = kept
	return removed
}

// Decorations maps each highlight to its renderable (range, hint) pair in
// insertion order.
func (h *Highlighter) Decorations() []Decoration {
	out := make([]Decoration, 0, len(h.highlights))
	for _, hl := range h.highlights {
		out = append(out, Decoration{Range: hl.Range, Hint: hl.Hint})
	}
	return out
}

// PickerEntries formats one entry per highlight as
// "<documentDisplayName>, <startLine>". Consumers parse entries back by
// splitting on the first ", " occurrence, so the format is a compatibility
// contract. A display name that itself contains ", " can collide; that
// limitation is accepted, not solved here.
func (h *Highlighter) PickerEntries() []string {
	out := make([]string, 0, len(h.highlights))
	for _, hl := range h.highlights {
		out = append(out, h.displayName+PickerSeparator+strconv.Itoa(hl.StartLine))
	}
	return out
}
