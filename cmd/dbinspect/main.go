// Command dbinspect prints a read-only summary of a Badger chapter store:
// chapters per book, the highest number of each partition and any rows
// whose key disagrees with the stored chapter.
package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/pflag"

	"github.com/quillpress/quill-server/internal/domain"
)

type partition struct {
	bookID   string
	chapters int
	highest  int
	gaps     int
	volumes  map[string]int
}

func main() {
	dataPath := pflag.String("data-path", os.ExpandEnv("$HOME/Quill/data"), "Quill data directory")
	limit := pflag.Int("limit", 10, "Books to print in detail")
	pflag.Parse()

	opts := badger.DefaultOptions(filepath.Join(*dataPath, "chapters")).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	parts := map[string]*partition{}
	indexKeys := map[string]int{}
	mismatched := 0

	err = db.View(func(txn *badger.Txn) error {
		prefix := []byte("chapter:")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rest := strings.TrimPrefix(string(item.Key()), "chapter:")
			if idx, ok := strings.CutPrefix(rest, "idx:"); ok {
				name, _, _ := strings.Cut(idx, ":")
				indexKeys[name]++
				continue
			}

			bookID, numStr, ok := strings.Cut(rest, ":")
			if !ok {
				log.Printf("Unexpected key %q", item.Key())
				continue
			}
			keyNumber, err := strconv.Atoi(numStr)
			if err != nil {
				log.Printf("Unexpected key %q: %v", item.Key(), err)
				continue
			}

			var ch domain.Chapter
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			}); err != nil {
				log.Printf("Error reading chapter %s: %v", item.Key(), err)
				continue
			}
			if ch.BookID != bookID || ch.Number != keyNumber {
				mismatched++
				fmt.Printf("MISMATCH key=%s book=%s number=%d\n", item.Key(), ch.BookID, ch.Number)
			}

			p := parts[bookID]
			if p == nil {
				p = &partition{bookID: bookID, volumes: map[string]int{}}
				parts[bookID] = p
			}
			// Keys iterate in number order, so any jump is a deleted chapter.
			if keyNumber > p.highest+1 {
				p.gaps += keyNumber - p.highest - 1
			}
			p.chapters++
			p.highest = max(p.highest, keyNumber)
			p.volumes[ch.VolumeID]++
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	sorted := make([]*partition, 0, len(parts))
	total := 0
	for _, p := range parts {
		sorted = append(sorted, p)
		total += p.chapters
	}
	slices.SortFunc(sorted, func(a, b *partition) int {
		return cmp.Or(cmp.Compare(b.chapters, a.chapters), strings.Compare(a.bookID, b.bookID))
	})

	fmt.Println("=== Chapter Store Inspection ===")
	fmt.Println()
	for i, p := range sorted {
		if i >= *limit {
			fmt.Printf("... and %d more books\n\n", len(sorted)-*limit)
			break
		}
		fmt.Printf("Book: %s\n", p.bookID)
		fmt.Printf("  Chapters: %d (highest number %d, %d missing)\n", p.chapters, p.highest, p.gaps)
		fmt.Printf("  Volumes: %d\n", len(p.volumes))
		fmt.Println()
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Books: %d\n", len(parts))
	fmt.Printf("Chapters: %d\n", total)
	fmt.Printf("ID index entries: %d\n", indexKeys["id"])
	fmt.Printf("Permalink index entries: %d\n", indexKeys["permalink"])
	fmt.Printf("Mismatched rows: %d\n", mismatched)
	if len(parts) > 0 {
		fmt.Printf("Average chapters per book: %.1f\n", float64(total)/float64(len(parts)))
	}
	for _, name := range []string{"id", "permalink"} {
		if indexKeys[name] != total {
			fmt.Printf("WARNING: %s index entries do not match chapter count\n", name)
		}
	}
}
