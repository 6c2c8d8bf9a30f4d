// Package plugin dispatches challenges to renderer and editor components by
// challenge type tag.
package plugin

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/iudanet/ctfclient/internal/models"
)

// MaxHops caps alias resolution so a Uses cycle ends as a missing renderer
const MaxHops = 8

// Kind separates challenge renderers from challenge editors
type Kind int

const (
	KindChallenge Kind = iota
	KindEditor
)

func (k Kind) String() string {
	switch k {
	case KindChallenge:
		return "renderer"
	case KindEditor:
		return "editor"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Props is what a component renders
type Props struct {
	Challenge *models.Challenge
	Category  *models.Category
	// Right is the secondary panel mounted by a rightOf plugin, nil otherwise
	Right Component
}

// Component renders a challenge view
type Component interface {
	Render(w io.Writer, p Props) error
}

// ComponentFunc adapts a function to Component
type ComponentFunc func(w io.Writer, p Props) error

// Render implements Component
func (f ComponentFunc) Render(w io.Writer, p Props) error {
	return f(w, p)
}

// Descriptor is a registered plugin.
//
// Uses aliases another tag of the same kind. RightOf mounts Component as the
// right-hand panel of the component registered for the base tag. Check, when
// set, must accept the challenge for the descriptor to apply.
type Descriptor struct {
	Component Component
	Check     func(*models.Challenge, *models.Category) bool
	Uses      string
	RightOf   string
}

// Resolution is the outcome of a lookup
type Resolution struct {
	Primary Component
	Right   Component
	// Tag is the tag whose descriptor supplied Primary
	Tag string
}

// MissingError reports a type tag with no renderable descriptor
type MissingError struct {
	Tag  string
	Kind Kind
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s for challenge type %q missing", e.Kind, e.Tag)
}

// IsMissing reports whether err is a *MissingError
func IsMissing(err error) bool {
	var mErr *MissingError
	return errors.As(err, &mErr)
}

var (
	ErrEmptyTag          = errors.New("plugin tag cannot be empty")
	ErrEmptyDescriptor   = errors.New("plugin descriptor needs a component or uses")
	ErrConflictingTarget = errors.New("plugin descriptor cannot set both uses and rightOf")
)

// Registry maps type tags to descriptors. Safe for concurrent use.
type Registry struct {
	entries  map[Kind]map[string]Descriptor
	metadata []metadataEntry
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: map[Kind]map[string]Descriptor{
			KindChallenge: {},
			KindEditor:    {},
		},
	}
}

// Register adds or replaces the descriptor for tag
func (r *Registry) Register(kind Kind, tag string, d Descriptor) error {
	if tag == "" {
		return ErrEmptyTag
	}
	if d.Component == nil && d.Uses == "" {
		return ErrEmptyDescriptor
	}
	if d.Uses != "" && d.RightOf != "" {
		return ErrConflictingTarget
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[kind] == nil {
		r.entries[kind] = map[string]Descriptor{}
	}
	r.entries[kind][tag] = d
	return nil
}

// Tags returns the registered tags of a kind
func (r *Registry) Tags(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.entries[kind]))
	for tag := range r.entries[kind] {
		tags = append(tags, tag)
	}
	return tags
}

// Resolve finds the components for a challenge. An empty type tag means the
// default type. Failures are *MissingError.
func (r *Registry) Resolve(kind Kind, chal *models.Challenge, cat *models.Category) (*Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag := chal.TypeTag()
	d, resolvedTag, ok := r.followLocked(kind, tag)
	if !ok || d.Component == nil {
		return nil, &MissingError{Kind: kind, Tag: tag}
	}
	if d.Check != nil && !d.Check(chal, cat) {
		return nil, &MissingError{Kind: kind, Tag: tag}
	}

	if d.RightOf == "" {
		return &Resolution{Primary: d.Component, Tag: resolvedTag}, nil
	}

	// Базовый тип рисует страницу, плагин встает справа
	base, baseTag, ok := r.followLocked(kind, d.RightOf)
	if !ok || base.Component == nil || base.RightOf != "" {
		return nil, &MissingError{Kind: kind, Tag: d.RightOf}
	}
	return &Resolution{Primary: base.Component, Right: d.Component, Tag: baseTag}, nil
}

// followLocked walks Uses aliases starting at tag
func (r *Registry) followLocked(kind Kind, tag string) (Descriptor, string, bool) {
	d, ok := r.entries[kind][tag]
	for hops := 0; ok && d.Uses != ""; hops++ {
		if hops >= MaxHops {
			return Descriptor{}, "", false
		}
		tag = d.Uses
		d, ok = r.entries[kind][tag]
	}
	return d, tag, ok
}

// Render writes the view of a challenge. A missing plugin is not an error:
// a fixed explanation is written instead. Only write and component errors
// are returned.
func (r *Registry) Render(w io.Writer, kind Kind, chal *models.Challenge, cat *models.Category) error {
	res, err := r.Resolve(kind, chal, cat)
	if err != nil {
		var mErr *MissingError
		if !errors.As(err, &mErr) {
			return err
		}
		return WriteMissing(w, mErr)
	}
	return res.Primary.Render(w, Props{Challenge: chal, Category: cat, Right: res.Right})
}

// WriteMissing writes the user-facing message for a missing plugin
func WriteMissing(w io.Writer, mErr *MissingError) error {
	what := "Renderer"
	if mErr.Kind == KindEditor {
		what = "Editor"
	}
	_, err := fmt.Fprintf(w, "%s for challenge type %q missing.\n\nDid you forget to install a plugin?\n", what, mErr.Tag)
	return err
}
