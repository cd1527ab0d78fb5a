// apps/go-server/assets/embed.go
//
// Files compiled into the server binary:
//   - symbols.txt: default card faces, one symbol per line.
//   - sql/*.sql:   schema migrations, applied in lexical order.

package assets

import (
	"bufio"
	"embed"
	"io"
	"io/fs"
	"strings"
)

//go:embed symbols.txt sql/*.sql
var FS embed.FS

// ReadLines returns the non-blank lines of r with surrounding space trimmed,
// skipping # comments.
func ReadLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLines(f)
}

// SymbolsList returns the embedded default symbol pool.
func SymbolsList() ([]string, error) {
	return readLines("symbols.txt")
}

// Migrations exposes the sql directory as its own filesystem root.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		// "sql" is a literal embedded directory; Sub only fails on invalid paths.
		panic(err)
	}
	return sub
}
