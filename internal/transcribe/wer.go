package transcribe

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// WERResult holds detailed word error rate results.
type WERResult struct {
	WER           float64 // (S + I + D) / RefWords; 0 is perfect
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
	HypWords      int
}

func (r WERResult) String() string {
	return fmt.Sprintf("WER %.2f%% (%d ref words, %d hyp words: %d sub, %d ins, %d del)",
		r.WER*100, r.RefWords, r.HypWords, r.Substitutions, r.Insertions, r.Deletions)
}

type editOp uint8

const (
	opMatch editOp = iota
	opSub
	opDel
	opIns
)

// ComputeWER scores a transcript against a reference text. Both are
// lowercased with punctuation stripped before alignment. An empty reference
// scores 0.
func ComputeWER(reference, hypothesis string) WERResult {
	ref := normalizeWords(reference)
	hyp := normalizeWords(hypothesis)
	n, m := len(ref), len(hyp)
	if n == 0 {
		return WERResult{HypWords: m}
	}

	// cost[i][j] is the edit distance between ref[:i] and hyp[:j]; op[i][j]
	// records the last step of one optimal alignment.
	cost := make([][]int, n+1)
	op := make([][]editOp, n+1)
	for i := range cost {
		cost[i] = make([]int, m+1)
		op[i] = make([]editOp, m+1)
		cost[i][0] = i
		op[i][0] = opDel
	}
	for j := 1; j <= m; j++ {
		cost[0][j] = j
		op[0][j] = opIns
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				cost[i][j], op[i][j] = cost[i-1][j-1], opMatch
				continue
			}
			cost[i][j], op[i][j] = cost[i-1][j-1]+1, opSub
			if c := cost[i-1][j] + 1; c < cost[i][j] {
				cost[i][j], op[i][j] = c, opDel
			}
			if c := cost[i][j-1] + 1; c < cost[i][j] {
				cost[i][j], op[i][j] = c, opIns
			}
		}
	}

	res := WERResult{RefWords: n, HypWords: m}
	for i, j := n, m; i > 0 || j > 0; {
		switch op[i][j] {
		case opMatch:
			i, j = i-1, j-1
		case opSub:
			res.Substitutions++
			i, j = i-1, j-1
		case opDel:
			res.Deletions++
			i--
		case opIns:
			res.Insertions++
			j--
		}
	}
	res.WER = float64(res.Substitutions+res.Insertions+res.Deletions) / float64(n)
	return res
}

// ScoreFiles reads a reference and a transcript file and scores them.
func ScoreFiles(referencePath, transcriptPath string) (WERResult, error) {
	ref, err := os.ReadFile(referencePath)
	if err != nil {
		return WERResult{}, fmt.Errorf("transcribe: reading reference: %w", err)
	}
	hyp, err := os.ReadFile(transcriptPath)
	if err != nil {
		return WERResult{}, fmt.Errorf("transcribe: reading transcript: %w", err)
	}
	return ComputeWER(string(ref), string(hyp)), nil
}

// normalizeWords lowercases text, strips punctuation, and splits into words.
func normalizeWords(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}
