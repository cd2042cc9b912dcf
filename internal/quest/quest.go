package quest

import (
	"encoding/json"

	"github.com/google/uuid"
)

// TimeOfDay is a discrete bucket of the day relative to sunrise and sunset.
type TimeOfDay string

const (
	Night   TimeOfDay = "night"
	Sunrise TimeOfDay = "sunrise"
	Day     TimeOfDay = "day"
	Sunset  TimeOfDay = "sunset"
)

// AllTimesOfDay lists every bucket, in chronological order starting at midnight.
var AllTimesOfDay = []TimeOfDay{Night, Sunrise, Day, Sunset}

// Valid reports whether t is one of the four known buckets.
func (t TimeOfDay) Valid() bool {
	switch t {
	case Night, Sunrise, Day, Sunset:
		return true
	}
	return false
}

// LocationContext classifies where a prompt makes sense to do.
type LocationContext string

const (
	LocationHome    LocationContext = "home"
	LocationNotHome LocationContext = "notHome"
	LocationAny     LocationContext = "any"
)

// Valid reports whether l is a known location context.
func (l LocationContext) Valid() bool {
	switch l {
	case LocationHome, LocationNotHome, LocationAny:
		return true
	}
	return false
}

// FavoritesPackID is the reserved sentinel identifying the synthetic
// Favorites pack. It is never assigned to a catalog pack.
var FavoritesPackID = uuid.Nil

// FavoritesPackName is the display name of the synthetic Favorites pack.
const FavoritesPackName = "Favorites"

// FavoritesPackIcon is the icon reference of the synthetic Favorites pack.
const FavoritesPackIcon = "heart.fill"

// Metadata describes the context in which a prompt applies.
type Metadata struct {
	// Vibe is an optional free-form mood tag. Informational only; never
	// used for filtering.
	Vibe string `json:"vibe,omitempty"`

	// DurationMinutes is the expected time to complete the prompt.
	DurationMinutes int `json:"durationInMinutes"`

	// Tools lists items required to do the prompt (may be empty).
	Tools []string `json:"tools"`

	// TimesOfDay lists the buckets during which the prompt applies.
	// A prompt may apply to several.
	TimesOfDay []TimeOfDay `json:"timesOfDay"`

	// LocationContext gates the prompt on home presence. Older pack files
	// omit this field; it defaults to "any" on decode.
	LocationContext LocationContext `json:"locationContext"`
}

// UnmarshalJSON decodes metadata, defaulting LocationContext to "any" when
// the field is absent (pre-location pack schema).
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type alias Metadata
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.LocationContext == "" {
		a.LocationContext = LocationAny
	}
	*m = Metadata(a)
	return nil
}

// AppliesAt reports whether the prompt's metadata admits the given bucket.
func (m Metadata) AppliesAt(t TimeOfDay) bool {
	for _, tod := range m.TimesOfDay {
		if tod == t {
			return true
		}
	}
	return false
}

// Prompt is a single activity prompt. Immutable after construction.
type Prompt struct {
	// ID uniquely identifies this prompt across all packs.
	ID uuid.UUID `json:"id"`

	// Text is the display text shown to the user.
	Text string `json:"text"`

	// Metadata carries the prompt's contextual classifiers.
	Metadata Metadata `json:"metadata"`

	// PackName is the name of the pack this prompt belongs to. It is
	// stamped by the catalog at load time and never serialized into the
	// pack's own file form.
	PackName string `json:"-"`
}

// Pack is a named, ordered collection of prompts with an icon.
type Pack struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IconName string    `json:"iconName"`
	Prompts  []Prompt  `json:"prompts"`
}

// ServedPrompt is the serialized form published to the shared blob store so
// an external renderer can display the latest prompt without running the
// selector. PackName is carried explicitly here because the wire form of a
// prompt inside a pack file omits it.
type ServedPrompt struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Metadata Metadata  `json:"metadata"`
	PackName string    `json:"packName"`
	ServedAt int64     `json:"servedAt"`
}

// Served converts a prompt into its shared-blob form.
func Served(p Prompt, servedAt int64) ServedPrompt {
	return ServedPrompt{
		ID:       p.ID,
		Text:     p.Text,
		Metadata: p.Metadata,
		PackName: p.PackName,
		ServedAt: servedAt,
	}
}
