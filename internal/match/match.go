// Package match pairs saved sessions with live windows by comparing
// normalized tab URLs.
package match

import (
	"context"

	"pkt.systems/tabkeeper/internal/urlnorm"
	"pkt.systems/tabkeeper/schema"
)

// Entry is the live tab recorded under a normalized URL.
type Entry struct {
	WindowID schema.WindowID
	Pinned   bool
	URL      string
	Title    string
}

// Index maps normalized URLs to the live tab that last claimed them.
type Index struct {
	entries map[string]Entry
	windows []schema.WindowID
}

// BuildIndex indexes every tab of every window. When a normalized URL is open
// in several windows the last one enumerated wins.
func BuildIndex(ctx context.Context, windows []schema.Window) *Index {
	idx := &Index{entries: make(map[string]Entry)}
	for _, window := range windows {
		idx.windows = append(idx.windows, window.ID)
		for _, tab := range window.Tabs {
			idx.entries[urlnorm.Normalize(ctx, tab.URL)] = Entry{
				WindowID: window.ID,
				Pinned:   tab.Pinned,
				URL:      tab.URL,
				Title:    tab.Title,
			}
		}
	}
	return idx
}

// Lookup returns the live entry for an already normalized URL.
func (i *Index) Lookup(key string) (Entry, bool) {
	if i == nil {
		return Entry{}, false
	}
	entry, ok := i.entries[key]
	return entry, ok
}

// Len returns the number of distinct normalized URLs.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.entries)
}

// Windows returns the indexed window ids in enumeration order.
func (i *Index) Windows() []schema.WindowID {
	if i == nil {
		return nil
	}
	return append([]schema.WindowID(nil), i.windows...)
}

// Match is the window chosen for a saved tab list.
type Match struct {
	WindowID schema.WindowID
	Count    int
}

// Threshold is the minimum number of matching tabs for a session of n tabs:
// 30% rounded up, never below one.
func Threshold(n int) int {
	t := (n*3 + 9) / 10
	if t < 1 {
		return 1
	}
	return t
}

// FindBestMatch counts saved tabs per live window and returns the window
// with the strictly greatest count at or above Threshold. Ties keep the
// window that was counted first.
func FindBestMatch(ctx context.Context, saved []schema.TabRecord, idx *Index) (Match, bool) {
	if len(saved) == 0 || idx.Len() == 0 {
		return Match{}, false
	}
	counts := make(map[schema.WindowID]int)
	var order []schema.WindowID
	for _, tab := range saved {
		entry, ok := idx.Lookup(urlnorm.Normalize(ctx, tab.URL))
		if !ok {
			continue
		}
		if _, seen := counts[entry.WindowID]; !seen {
			order = append(order, entry.WindowID)
		}
		counts[entry.WindowID]++
	}
	threshold := Threshold(len(saved))
	var best Match
	found := false
	for _, windowID := range order {
		count := counts[windowID]
		if count < threshold {
			continue
		}
		if !found || count > best.Count {
			best = Match{WindowID: windowID, Count: count}
			found = true
		}
	}
	return best, found
}
