package highlight

// Renderer is the collaborator that actually draws decorations in the
// editor. Apply replaces the full decoration set previously rendered for
// the document; it is never a diff. An empty document key clears whatever
// editor is frontmost.
type Renderer interface {
	Apply(documentKey string, decorations []Decoration)
}

// TreeNotifier is told whenever registry contents change so a read-only
// tree or list view can re-query its source.
type TreeNotifier interface {
	HighlightsChanged()
}

// Syncer is the stateless projection from registry state to the renderable
// range list for the active document. It holds no highlight state of its
// own; it only reads the registry and the active document identity the
// router feeds it.
type Syncer struct {
	registry  *Registry
	renderer  Renderer
	tree      TreeNotifier
	activeDoc string
}

// NewSyncer wires a projection over the registry.
func NewSyncer(reg *Registry, renderer Renderer, tree TreeNotifier) *Syncer {
	return &Syncer{registry: reg, renderer: renderer, tree: tree}
}

// ActiveDocument returns the document key the projection currently targets,
// or "" when no document is active.
func (s *Syncer) ActiveDocument() string { return s.activeDoc }

// SetActiveDocument records the newly active document and refreshes the
// projection for it.
func (s *Syncer) SetActiveDocument(docKey string) {
	s.activeDoc = docKey
	s.Refresh()
}

// Refresh re-projects the active document's highlights onto the renderer
// and pokes the tree view. With no active document, or no highlights for
// it, the renderer receives an empty set.
func (s *Syncer) Refresh() {
	var decorations []Decoration
	if s.activeDoc != "" {
		if hr, ok := s.registry.Find(s.activeDoc); ok {
			decorations = hr.Decorations()
		}
	}
	s.renderer.Apply(s.activeDoc, decorations)
	if s.tree != nil {
		s.tree.HighlightsChanged()
	}
}
