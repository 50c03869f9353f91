package vibes

import (
	"testing"

	"github.com/justestif/go-emotion-music/internal/emotion"
)

func TestLookupCoversEveryEmotion(t *testing.T) {
	for _, e := range emotion.All() {
		t.Run(string(e), func(t *testing.T) {
			m := Lookup(e)
			if m.Vibe == "" || m.Icon == "" || m.SearchQuery == "" || m.Tag == "" {
				t.Errorf("Lookup(%s) has empty fields: %+v", e, m)
			}
			if len(m.FallbackSongs) == 0 {
				t.Errorf("Lookup(%s) has no fallback songs", e)
			}
			for _, s := range m.FallbackSongs {
				if s.Title == "" || s.Artist == "" {
					t.Errorf("Lookup(%s) has incomplete song %+v", e, s)
				}
			}
		})
	}
}

func TestLookupUnknownFallsBackToNeutral(t *testing.T) {
	got := Lookup(emotion.Type("bored"))
	want := Lookup(emotion.Neutral)

	if got.Vibe != want.Vibe || got.SearchQuery != want.SearchQuery {
		t.Errorf("Lookup(bored) = %+v, want neutral mapping", got)
	}
}

func TestLookupNeutralQuery(t *testing.T) {
	if q := Lookup(emotion.Neutral).SearchQuery; q != "chill easy listening indie playlist" {
		t.Errorf("neutral SearchQuery = %q", q)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	m := Lookup(emotion.Happy)
	m.FallbackSongs[0].Title = "changed"
	m.Vibe = "changed"

	again := Lookup(emotion.Happy)
	if again.FallbackSongs[0].Title != "Happy" || again.Vibe != "Upbeat & Energetic" {
		t.Error("Lookup() returned a mapping that shares state with the table")
	}
}

func TestAll(t *testing.T) {
	all := All()
	if len(all) != len(emotion.All()) {
		t.Fatalf("All() has %d entries, want %d", len(all), len(emotion.All()))
	}

	all[emotion.Sad] = Mapping{}
	if Lookup(emotion.Sad).Vibe == "" {
		t.Error("All() returned the internal table")
	}
}
