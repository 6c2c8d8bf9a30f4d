package models

// DefaultChallengeType is used when a challenge carries no type tag
const DefaultChallengeType = "default"

// Category groups challenges, the catalog is an ordered list of categories
type Category struct {
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	ContainedType string      `json:"contained_type,omitempty"`
	Challenges    []Challenge `json:"challenges"`
	ID            int64       `json:"id"`
}

// Challenge is a single task of the competition.
// Metadata is a type-specific bag interpreted only by the challenge plugin.
type Challenge struct {
	Metadata    map[string]any `json:"challenge_metadata,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"challenge_type"`
	Description string         `json:"description"`
	Author      string         `json:"author,omitempty"`
	Hints       []Hint         `json:"hints"`
	Files       []File         `json:"files"`
	ID          int64          `json:"id"`
	Score       int64          `json:"score"`
	Solved      bool           `json:"solved"`
	Unlocked    bool           `json:"unlocked"`
}

// TypeTag returns the plugin tag of the challenge, falling back to the default one
func (c *Challenge) TypeTag() string {
	if c == nil || c.Type == "" {
		return DefaultChallengeType
	}
	return c.Type
}

// Hint is an optional clue that costs points to reveal
type Hint struct {
	Name    string `json:"name"`
	Text    string `json:"text,omitempty"`
	ID      int64  `json:"id"`
	Penalty int64  `json:"penalty"`
	Used    bool   `json:"used"`
}

// File is a downloadable attachment of a challenge
type File struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	ID   int64  `json:"id"`
	Size int64  `json:"size"`
}

// Catalog is the full ordered challenge catalog
type Catalog []Category

// FindChallenge looks a challenge up by ID and returns it with its category
func (c Catalog) FindChallenge(id int64) (*Challenge, *Category) {
	for i := range c {
		for j := range c[i].Challenges {
			if c[i].Challenges[j].ID == id {
				return &c[i].Challenges[j], &c[i]
			}
		}
	}
	return nil, nil
}

// Clone returns a deep enough copy of the catalog to patch Solved flags
// without touching the original slices
func (c Catalog) Clone() Catalog {
	if c == nil {
		return nil
	}
	out := make(Catalog, len(c))
	for i := range c {
		out[i] = c[i]
		out[i].Challenges = append([]Challenge(nil), c[i].Challenges...)
	}
	return out
}
