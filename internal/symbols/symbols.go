// apps/go-server/internal/symbols/symbols.go
//
// Symbol pool management for deck construction.
//
// Responsibilities:
//   - Load the pool of card faces from SYMBOLS_FILE or fall back to the
//     embedded default (emoji U+1F601..U+1F64F).
//   - Drop blanks, comments and duplicates so every symbol is distinct.
//   - Draw random, non-repeating subsets for a new deal.
//
// Environment variables:
//   SYMBOLS_FILE=/path/to/symbols.txt   (one symbol per line, # comments)
//
// Initialization is run once (sync.Once).

package symbols

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/memory/apps/go-server/assets"
)

// ErrPoolExhausted is returned when more distinct symbols are requested
// than the pool holds.
var ErrPoolExhausted = errors.New("symbol pool exhausted")

// Pool is an immutable list of distinct symbols.
type Pool struct {
	symbols []string
}

// NewPool builds a pool from list, dropping blanks and duplicates while
// keeping first-seen order.
func NewPool(list []string) Pool {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return Pool{symbols: out}
}

// Size reports how many distinct symbols the pool holds.
func (p Pool) Size() int { return len(p.symbols) }

// Draw returns n distinct symbols chosen uniformly at random from the pool.
// The pool itself is not modified.
func (p Pool) Draw(n int, rng *rand.Rand) ([]string, error) {
	if n < 0 {
		return nil, fmt.Errorf("draw %d symbols: negative count", n)
	}
	if n > len(p.symbols) {
		return nil, fmt.Errorf("draw %d of %d symbols: %w", n, len(p.symbols), ErrPoolExhausted)
	}
	// Partial Fisher–Yates on a copy: the first n slots end up as the sample.
	work := append([]string(nil), p.symbols...)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	return work[:n], nil
}

var (
	initOnce   sync.Once
	defaultSet Pool
	initialErr error
)

// Init loads the default pool exactly once.
// Returns an error if the pool ends up empty.
func Init() error {
	initOnce.Do(func() {
		var list []string
		if path := os.Getenv("SYMBOLS_FILE"); path != "" {
			list, initialErr = readSymbolFile(path)
		} else {
			list, initialErr = assets.SymbolsList()
		}
		if initialErr != nil {
			return
		}
		defaultSet = NewPool(list)
		if defaultSet.Size() == 0 {
			initialErr = errors.New("symbols: pool is empty")
		}
	})
	return initialErr
}

// Default returns the process-wide pool, loading it on first use.
// If loading failed the pool is empty and every Draw fails.
func Default() Pool {
	_ = Init()
	return defaultSet
}

// readSymbolFile loads one symbol per line, skipping blanks and # comments.
func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return assets.ReadLines(f)
}
