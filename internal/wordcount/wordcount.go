// Package wordcount counts token frequencies in a text corpus with a
// bigslice pipeline: lines are read across shards, tokenized, folded into
// (token, count) pairs, and written as one output file per shard.
package wordcount

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/grailbio/bigslice"
	"github.com/grailbio/bigslice/exec"
	"github.com/grailbio/bigslice/sliceio"
	"github.com/rs/zerolog/log"
)

// Count is one aggregated (token, occurrences) pair.
type Count struct {
	Word string `json:"word"`
	N    int    `json:"n"`
}

// countWords is the bigslice computation: tokenize path across shards, fold
// counts, and write one text file per shard under prefix.
var countWords = bigslice.Func(func(path string, shards int, prefix string) bigslice.Slice {
	slice := Lines(path, shards)
	slice = Counts(slice)
	slice = bigslice.Scan(slice, func(shard int, scan *sliceio.Scanner) error {
		f, err := os.Create(fmt.Sprintf("%s-%03d-of-%03d", prefix, shard, shards))
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f)
		var (
			word string
			n    int
		)
		for scan.Scan(context.Background(), &word, &n) {
			fmt.Fprintf(w, "%s\t%d\n", word, n)
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		return scan.Err()
	})
	return slice
})

// Lines reads the file at path as a Slice<string> of its lines, striped
// across the given number of shards. Every shard scans the file and keeps
// the lines congruent to its index.
func Lines(path string, shards int) bigslice.Slice {
	if shards < 1 {
		shards = 1
	}
	type state struct {
		file    *os.File
		scanner *bufio.Scanner
		index   int
	}
	return bigslice.ReaderFunc(shards, func(shard int, state *state, lines []string) (n int, err error) {
		if state.file == nil {
			state.file, err = os.Open(path)
			if err != nil {
				return 0, err
			}
			state.scanner = bufio.NewScanner(state.file)
		}
		for i := range lines {
			for {
				if !state.scanner.Scan() {
					err := state.scanner.Err()
					state.file.Close()
					if err != nil {
						return i, err
					}
					return i, sliceio.EOF
				}
				line := state.scanner.Text()
				index := state.index
				state.index++
				if index%shards == shard {
					lines[i] = line
					break
				}
			}
		}
		return len(lines), nil
	})
}

// Counts turns a Slice<string> of lines into a Slice<string, int> of
// aggregated token counts.
func Counts(lines bigslice.Slice) bigslice.Slice {
	slice := bigslice.Flatmap(lines, Tokenize)
	slice = bigslice.Map(slice, func(token string) (word string, count int) {
		return token, 1
	})
	return bigslice.Fold(slice, func(a, e int) int { return a + e })
}

// Tokenize lowercases a line and splits it into words. Apostrophes survive
// inside a word so contractions count as one token.
func Tokenize(line string) []string {
	fields := strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Run executes the word-count job on the given session, writing one
// "part-NNN-of-MMM" file per shard under outDir.
func Run(ctx context.Context, sess *exec.Session, path string, shards int, outDir string) error {
	if shards < 1 {
		shards = 1
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	prefix := filepath.Join(outDir, "part")
	log.Info().Str("input", path).Str("output", outDir).Int("shards", shards).Msg("running word count")
	if _, err := sess.Run(ctx, countWords, path, shards, prefix); err != nil {
		return fmt.Errorf("word count failed: %w", err)
	}
	return nil
}

// ReadCounts merges the shard files a Run produced back into memory.
func ReadCounts(outDir string) ([]Count, error) {
	paths, err := filepath.Glob(filepath.Join(outDir, "part-*-of-*"))
	if err != nil {
		return nil, err
	}
	var counts []Count
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open shard %s: %w", p, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			word, countStr, ok := strings.Cut(scanner.Text(), "\t")
			if !ok {
				continue
			}
			n, err := strconv.Atoi(countStr)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("malformed count in %s: %w", p, err)
			}
			counts = append(counts, Count{Word: word, N: n})
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return nil, err
		}
		f.Close()
	}
	return counts, nil
}

// Top returns the n highest counts, ties broken alphabetically. n <= 0 or
// beyond the input returns everything sorted.
func Top(counts []Count, n int) []Count {
	sorted := make([]Count, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].N != sorted[j].N {
			return sorted[i].N > sorted[j].N
		}
		return sorted[i].Word < sorted[j].Word
	})
	if n <= 0 || n > len(sorted) {
		return sorted
	}
	return sorted[:n]
}
