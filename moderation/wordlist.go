package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed censored/*
var censoredFS embed.FS

// Wordlist carries the merged word list plus metadata for logging.
type Wordlist struct {
	Words     []string
	Languages []string
}

// LoadWordlist parses the embedded per-language dictionaries
// (censored/<lang>.txt, one word per line) into a deduplicated list.
// An empty result is valid and disables moderation.
func LoadWordlist() (Wordlist, error) {
	entries, err := fs.ReadDir(censoredFS, "censored")
	if err != nil {
		return Wordlist{}, err
	}

	var languages []string
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := censoredFS.ReadFile("censored/" + entry.Name())
		if err != nil {
			return Wordlist{}, err
		}
		// A scanner handles both \n and \r\n endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return Wordlist{}, err
		}
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	sort.Strings(words)
	return Wordlist{Words: words, Languages: languages}, nil
}
