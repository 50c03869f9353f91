package emotion

import (
	"errors"
	"testing"
)

func uniformExpressions(dominant Type, confidence float64) map[Type]float64 {
	rest := (1 - confidence) / float64(len(all)-1)
	m := make(map[Type]float64, len(all))
	for _, t := range all {
		if t == dominant {
			m[t] = confidence
		} else {
			m[t] = rest
		}
	}
	return m
}

func mustResult(t *testing.T, dominant Type, confidence float64, ts int64) Result {
	t.Helper()
	r, err := NewResult(dominant, confidence, uniformExpressions(dominant, confidence), ts)
	if err != nil {
		t.Fatalf("NewResult() error = %v", err)
	}
	return r
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"happy", Happy, false},
		{"HAPPY", Happy, false},
		{"  Contempt ", Contempt, false},
		{"neutral", Neutral, false},
		{"bored", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownEmotion) {
					t.Errorf("Parse(%q) error = %v, want ErrUnknownEmotion", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAllHasEightTypes(t *testing.T) {
	types := All()
	if len(types) != 8 {
		t.Fatalf("All() returned %d types, want 8", len(types))
	}

	// Mutating the returned slice must not leak into the package.
	types[0] = "broken"
	if All()[0] != Happy {
		t.Error("All() returned a shared slice")
	}
}

func TestLabel(t *testing.T) {
	if got := Surprised.Label(); got != "Surprised" {
		t.Errorf("Label() = %q, want %q", got, "Surprised")
	}
	if got := Type("").Label(); got != "" {
		t.Errorf("empty Label() = %q, want empty", got)
	}
}

func TestNewResult(t *testing.T) {
	tests := []struct {
		name        string
		dominant    Type
		confidence  float64
		expressions map[Type]float64
		wantErr     bool
	}{
		{
			name:        "valid uniform residual",
			dominant:    Happy,
			confidence:  0.75,
			expressions: uniformExpressions(Happy, 0.75),
		},
		{
			name:        "single entry",
			dominant:    Sad,
			confidence:  1,
			expressions: map[Type]float64{Sad: 1},
		},
		{
			name:        "sum too small",
			dominant:    Sad,
			confidence:  0.5,
			expressions: map[Type]float64{Sad: 0.5},
			wantErr:     true,
		},
		{
			name:        "negative probability",
			dominant:    Angry,
			confidence:  0.9,
			expressions: map[Type]float64{Angry: 1.1, Sad: -0.1},
			wantErr:     true,
		},
		{
			name:        "confidence above one",
			dominant:    Angry,
			confidence:  1.2,
			expressions: map[Type]float64{Angry: 1},
			wantErr:     true,
		},
		{
			name:        "unknown dominant",
			dominant:    "bored",
			confidence:  0.5,
			expressions: map[Type]float64{Neutral: 1},
			wantErr:     true,
		},
		{
			name:        "unknown expression key",
			dominant:    Neutral,
			confidence:  0.5,
			expressions: map[Type]float64{Neutral: 0.5, "bored": 0.5},
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResult(tt.dominant, tt.confidence, tt.expressions, 1)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidResult) {
					t.Errorf("NewResult() error = %v, want ErrInvalidResult", err)
				}
				return
			}
			if err != nil {
				t.Errorf("NewResult() error = %v", err)
			}
		})
	}
}

func TestResultIsImmutable(t *testing.T) {
	expr := uniformExpressions(Happy, 0.8)
	r, err := NewResult(Happy, 0.8, expr, 42)
	if err != nil {
		t.Fatalf("NewResult() error = %v", err)
	}

	expr[Happy] = 0
	if r.Expressions()[Happy] != 0.8 {
		t.Error("Result shares the caller's expressions map")
	}

	got := r.Expressions()
	got[Happy] = 0
	if r.Expressions()[Happy] != 0.8 {
		t.Error("Expressions() returned the internal map")
	}
}
