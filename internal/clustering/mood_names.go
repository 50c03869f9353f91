package clustering

import "github.com/justestif/go-emotion-music/internal/emotion"

// affect places each emotion on the valence/arousal plane, both in [-1,1].
var affect = map[emotion.Type]struct{ valence, arousal float64 }{
	emotion.Happy:     {0.8, 0.5},
	emotion.Surprised: {0.4, 0.8},
	emotion.Angry:     {-0.6, 0.8},
	emotion.Fearful:   {-0.6, 0.6},
	emotion.Disgusted: {-0.7, 0.3},
	emotion.Contempt:  {-0.5, 0.1},
	emotion.Sad:       {-0.7, -0.4},
	emotion.Neutral:   {0.1, -0.3},
}

// valenceArousal is the probability-weighted position of a centroid.
func valenceArousal(centroid map[emotion.Type]float64) (valence, arousal float64) {
	var total float64
	for t, p := range centroid {
		a, ok := affect[t]
		if !ok {
			continue
		}
		valence += a.valence * p
		arousal += a.arousal * p
		total += p
	}
	if total > 0 {
		valence /= total
		arousal /= total
	}
	return valence, arousal
}

// moodName creates a descriptive name from a centroid using a 2x2
// valence/arousal quadrant system.
//
// Quadrants:
//   - High Arousal + Positive Valence = "Upbeat & Energized"
//   - High Arousal + Negative Valence = "Tense & Agitated"
//   - Low Arousal  + Positive Valence = "Calm & Content"
//   - Low Arousal  + Negative Valence = "Low & Reflective"
func moodName(centroid map[emotion.Type]float64) string {
	valence, arousal := valenceArousal(centroid)

	highArousal := arousal > 0.2
	positive := valence >= 0

	switch {
	case highArousal && positive:
		return "Upbeat & Energized"
	case highArousal && !positive:
		return "Tense & Agitated"
	case !highArousal && positive:
		return "Calm & Content"
	default:
		return "Low & Reflective"
	}
}

// MoodCategory represents a mood classification for display purposes.
type MoodCategory struct {
	Name        string  `json:"name"`
	Valence     float64 `json:"valence"`
	Arousal     float64 `json:"arousal"`
	Description string  `json:"description"`
}

// Describe returns a detailed mood category for a centroid.
func Describe(centroid map[emotion.Type]float64) MoodCategory {
	valence, arousal := valenceArousal(centroid)

	var description string
	switch {
	case arousal > 0.2 && valence >= 0:
		description = "Bright and lively - music to match the energy"
	case arousal > 0.2:
		description = "Charged and restless - something to channel the tension"
	case valence >= 0:
		description = "Settled and easy - relaxed listening"
	default:
		description = "Quiet and heavy - gentle, comforting music"
	}

	return MoodCategory{
		Name:        moodName(centroid),
		Valence:     valence,
		Arousal:     arousal,
		Description: description,
	}
}
