// Package vibes maps detected emotions to music recommendations.
package vibes

import (
	"maps"
	"slices"

	"github.com/justestif/go-emotion-music/internal/emotion"
)

// Song is a static recommendation shown when no catalog results are available.
type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Icon   string `json:"icon"`
}

// Mapping describes the music vibe for one emotion.
type Mapping struct {
	Vibe          string `json:"vibe"`
	Icon          string `json:"icon"`
	SearchQuery   string `json:"search_query"`
	Tag           string `json:"tag"`
	FallbackSongs []Song `json:"fallback_songs"`
}

var table = map[emotion.Type]Mapping{
	emotion.Happy: {
		Vibe:        "Upbeat & Energetic",
		Icon:        "😊",
		SearchQuery: "upbeat energetic pop playlist",
		Tag:         "happy",
		FallbackSongs: []Song{
			{"Happy", "Pharrell Williams", "🎉"},
			{"Walking on Sunshine", "Katrina and the Waves", "☀️"},
			{"Don't Stop Me Now", "Queen", "⚡"},
			{"Good as Hell", "Lizzo", "💫"},
			{"Can't Stop the Feeling", "Justin Timberlake", "🎵"},
		},
	},
	emotion.Sad: {
		Vibe:        "Calm & Reflective",
		Icon:        "😢",
		SearchQuery: "calm reflective melancholy playlist",
		Tag:         "sad",
		FallbackSongs: []Song{
			{"Someone Like You", "Adele", "🌧️"},
			{"The Night We Met", "Lord Huron", "🌙"},
			{"Hurt", "Johnny Cash", "💔"},
			{"Mad World", "Gary Jules", "🌊"},
			{"Skinny Love", "Bon Iver", "🍂"},
		},
	},
	emotion.Angry: {
		Vibe:        "Intense & Powerful",
		Icon:        "😠",
		SearchQuery: "intense powerful rock metal playlist",
		Tag:         "metal",
		FallbackSongs: []Song{
			{"Break Stuff", "Limp Bizkit", "🔥"},
			{"Killing in the Name", "Rage Against the Machine", "⚡"},
			{"Bodies", "Drowning Pool", "💥"},
			{"Last Resort", "Papa Roach", "🎸"},
			{"Chop Suey!", "System of a Down", "🤘"},
		},
	},
	emotion.Surprised: {
		Vibe:        "Unexpected & Fun",
		Icon:        "😲",
		SearchQuery: "fun upbeat surprising pop playlist",
		Tag:         "funk",
		FallbackSongs: []Song{
			{"Uptown Funk", "Mark Ronson ft. Bruno Mars", "🎺"},
			{"September", "Earth, Wind & Fire", "🎉"},
			{"Mr. Blue Sky", "Electric Light Orchestra", "☀️"},
			{"Dynamite", "BTS", "💥"},
			{"Levitating", "Dua Lipa", "✨"},
		},
	},
	emotion.Fearful: {
		Vibe:        "Soothing & Comforting",
		Icon:        "😨",
		SearchQuery: "soothing comforting chill ambient playlist",
		Tag:         "ambient",
		FallbackSongs: []Song{
			{"Weightless", "Marconi Union", "🌊"},
			{"Breathe Me", "Sia", "🌙"},
			{"Fix You", "Coldplay", "⭐"},
			{"Safe & Sound", "Capital Cities", "🏡"},
			{"The A Team", "Ed Sheeran", "🎵"},
		},
	},
	emotion.Disgusted: {
		Vibe:        "Alternative & Edgy",
		Icon:        "🤢",
		SearchQuery: "alternative edgy grunge rock playlist",
		Tag:         "grunge",
		FallbackSongs: []Song{
			{"Smells Like Teen Spirit", "Nirvana", "🎸"},
			{"Bitter Sweet Symphony", "The Verve", "🎻"},
			{"Creep", "Radiohead", "🌑"},
			{"Seven Nation Army", "The White Stripes", "⚡"},
			{"Boulevard of Broken Dreams", "Green Day", "🛣️"},
		},
	},
	emotion.Neutral: {
		Vibe:        "Chill & Easy Listening",
		Icon:        "😐",
		SearchQuery: "chill easy listening indie playlist",
		Tag:         "chill",
		FallbackSongs: []Song{
			{"Riptide", "Vance Joy", "🌊"},
			{"Budapest", "George Ezra", "🎵"},
			{"Ho Hey", "The Lumineers", "🎸"},
			{"Some Nights", "fun.", "🌙"},
			{"The Middle", "Zedd, Maren Morris & Grey", "✨"},
		},
	},
	emotion.Contempt: {
		Vibe:        "Dark & Brooding",
		Icon:        "😒",
		SearchQuery: "dark alternative indie moody playlist",
		Tag:         "dark alternative",
		FallbackSongs: []Song{
			{"Hurt", "Nine Inch Nails", "🖤"},
			{"Black", "Pearl Jam", "🌑"},
			{"Fake Plastic Trees", "Radiohead", "🥀"},
			{"Where Is My Mind?", "Pixies", "🌊"},
			{"Karma Police", "Radiohead", "🚔"},
		},
	},
}

// Lookup returns the mapping for e. Unknown emotions get the neutral mapping.
// The returned value is a copy.
func Lookup(e emotion.Type) Mapping {
	m, ok := table[e]
	if !ok {
		m = table[emotion.Neutral]
	}
	return m.clone()
}

// All returns a copy of the whole table.
func All() map[emotion.Type]Mapping {
	out := make(map[emotion.Type]Mapping, len(table))
	for k, v := range maps.All(table) {
		out[k] = v.clone()
	}
	return out
}

func (m Mapping) clone() Mapping {
	m.FallbackSongs = slices.Clone(m.FallbackSongs)
	return m
}
