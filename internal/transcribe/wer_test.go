package transcribe

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeWER(t *testing.T) {
	tests := []struct {
		name      string
		ref, hyp  string
		sub, ins  int
		del, refN int
		wer       float64
	}{
		{"exact", "please schedule the meeting for tuesday", "please schedule the meeting for tuesday", 0, 0, 0, 6, 0},
		{"wrong weekday", "please schedule the meeting for tuesday", "please schedule the meeting for thursday", 1, 0, 0, 6, 1.0 / 6},
		{"filler inserted", "turn on the lights", "turn on all the lights", 0, 1, 0, 4, 0.25},
		{"article dropped", "send the report today", "send report today", 0, 0, 1, 4, 0.25},
		{"case and punctuation", "Call Mom, please!", "call mom please", 0, 0, 0, 3, 0},
		{"whitespace", "  ok   google  ", "ok google", 0, 0, 0, 2, 0},
		{"silence", "good morning", "", 0, 0, 2, 2, 1},
		{"nothing in common", "yes sir", "no mam", 2, 0, 0, 2, 1},
		{"one of each", "set a timer for ten minutes", "set timer for two minutes please", 1, 1, 1, 6, 0.5},
		{"no reference", "", "uh hello", 0, 0, 0, 0, 0},
		{"both empty", "", "", 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeWER(tt.ref, tt.hyp)
			if got.Substitutions != tt.sub || got.Insertions != tt.ins || got.Deletions != tt.del {
				t.Errorf("S/I/D = %d/%d/%d, want %d/%d/%d",
					got.Substitutions, got.Insertions, got.Deletions, tt.sub, tt.ins, tt.del)
			}
			if got.RefWords != tt.refN {
				t.Errorf("RefWords = %d, want %d", got.RefWords, tt.refN)
			}
			if math.Abs(got.WER-tt.wer) > 1e-9 {
				t.Errorf("WER = %f, want %f", got.WER, tt.wer)
			}
		})
	}
}

func TestComputeWERCountsHypothesisWords(t *testing.T) {
	if got := ComputeWER("", "uh hello").HypWords; got != 2 {
		t.Errorf("HypWords = %d, want 2", got)
	}
	if got := ComputeWER("a b c", "a b c d e").HypWords; got != 5 {
		t.Errorf("HypWords = %d, want 5", got)
	}
}

func TestComputeWERResult(t *testing.T) {
	got := ComputeWER(
		"ask not what your country can do for you",
		"ask what your country can do for you",
	)
	if got.Deletions != 1 {
		t.Errorf("Deletions = %d, want 1", got.Deletions)
	}
	if got.RefWords != 9 {
		t.Errorf("RefWords = %d, want 9", got.RefWords)
	}
	wantWER := 1.0 / 9.0
	if diff := got.WER - wantWER; diff > 0.001 || diff < -0.001 {
		t.Errorf("WER = %f, want %f", got.WER, wantWER)
	}
}

func TestWERResultString(t *testing.T) {
	got := ComputeWER("one two three four", "one too three").String()
	for _, want := range []string{"50.00%", "4 ref words", "3 hyp words", "1 sub", "1 del"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestScoreFiles(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "reference.txt")
	hyp := filepath.Join(dir, "meeting_20240101_120000.txt")
	if err := os.WriteFile(ref, []byte("And so, my fellow Americans: ask not what your country can do for you."), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(hyp, []byte("and so my fellow americans ask not what your country can do for you"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ScoreFiles(ref, hyp)
	if err != nil {
		t.Fatalf("ScoreFiles() error = %v", err)
	}
	if got.WER != 0 {
		t.Errorf("WER = %f, want 0 after normalization", got.WER)
	}

	if _, err := ScoreFiles(filepath.Join(dir, "missing.txt"), hyp); err == nil {
		t.Error("ScoreFiles() with missing reference should fail")
	}
}
