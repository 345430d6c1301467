package models

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the [Suggestion] variants.
type Kind int

const (
	KindArtist Kind = iota
	KindAlbum
	KindRecording
)

// Kinds lists the suggestion kinds in display order.
var Kinds = []Kind{KindArtist, KindAlbum, KindRecording}

func (k Kind) String() string {
	switch k {
	case KindArtist:
		return "artist"
	case KindAlbum:
		return "album"
	case KindRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Label is the group heading for the kind.
func (k Kind) Label() string {
	switch k {
	case KindArtist:
		return "Artists"
	case KindAlbum:
		return "Albums"
	case KindRecording:
		return "Songs"
	default:
		return ""
	}
}

// Suggestion is one typeahead result. Kind is always set; Artist is required for albums and recordings.
type Suggestion struct {
	Kind      Kind   `json:"-"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Artist    string `json:"artist,omitempty"`
	InLibrary bool   `json:"inLibrary,omitempty"`
}

// NewArtist builds an artist suggestion.
func NewArtist(id, name string) Suggestion {
	return Suggestion{Kind: KindArtist, ID: id, Name: name}
}

// NewAlbum builds an album suggestion.
func NewAlbum(id, name, artist string) Suggestion {
	return Suggestion{Kind: KindAlbum, ID: id, Name: name, Artist: artist}
}

// NewRecording builds a recording suggestion.
func NewRecording(id, name, artist string) Suggestion {
	return Suggestion{Kind: KindRecording, ID: id, Name: name, Artist: artist}
}

// Validate enforces the per-variant required fields.
func (s Suggestion) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%s suggestion: name is required", s.Kind)
	}
	switch s.Kind {
	case KindArtist:
		return nil
	case KindAlbum, KindRecording:
		if s.Artist == "" {
			return fmt.Errorf("%s suggestion %q: artist is required", s.Kind, s.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown suggestion kind %d", s.Kind)
	}
}

// Display renders the suggestion as a single line.
func (s Suggestion) Display() string {
	if s.Artist != "" {
		return s.Name + " · " + s.Artist
	}
	return s.Name
}

// Group is one display category of suggestions.
type Group struct {
	Kind  Kind
	Items []Suggestion
}

// Suggestions is the payload of the suggestion endpoint.
type Suggestions struct {
	Artists    []Suggestion `json:"artists"`
	Albums     []Suggestion `json:"albums"`
	Recordings []Suggestion `json:"recordings"`
}

// UnmarshalJSON decodes the wire shape and stamps each entry with its kind.
func (s *Suggestions) UnmarshalJSON(data []byte) error {
	type wire Suggestions
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Suggestions(w)
	s.stamp()
	return nil
}

func (s *Suggestions) stamp() {
	for i := range s.Artists {
		s.Artists[i].Kind = KindArtist
	}
	for i := range s.Albums {
		s.Albums[i].Kind = KindAlbum
	}
	for i := range s.Recordings {
		s.Recordings[i].Kind = KindRecording
	}
}

// Len returns the total number of suggestions.
func (s *Suggestions) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Artists) + len(s.Albums) + len(s.Recordings)
}

// Groups returns the non-empty groups in the fixed order Artists, Albums, Songs.
func (s *Suggestions) Groups() []Group {
	if s == nil {
		return nil
	}
	var groups []Group
	for _, g := range []Group{
		{Kind: KindArtist, Items: s.Artists},
		{Kind: KindAlbum, Items: s.Albums},
		{Kind: KindRecording, Items: s.Recordings},
	} {
		if len(g.Items) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// Flatten concatenates the groups in display order, preserving order within each group.
func (s *Suggestions) Flatten() []Suggestion {
	if s == nil {
		return nil
	}
	flat := make([]Suggestion, 0, s.Len())
	flat = append(flat, s.Artists...)
	flat = append(flat, s.Albums...)
	flat = append(flat, s.Recordings...)
	return flat
}

// Clone returns a deep copy.
func (s *Suggestions) Clone() *Suggestions {
	if s == nil {
		return nil
	}
	return &Suggestions{
		Artists:    append([]Suggestion(nil), s.Artists...),
		Albums:     append([]Suggestion(nil), s.Albums...),
		Recordings: append([]Suggestion(nil), s.Recordings...),
	}
}
