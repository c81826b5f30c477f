package merge

import (
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/jremap/internal/mapping"
)

const (
	maxSuggestions      = 3
	suggestionThreshold = 0.85
)

type scored struct {
	name  string
	score float32
}

// closest returns up to maxSuggestions labels whose key is similar to name,
// best first. keys and labels are parallel; an exact key match is a valid
// suggestion only when its label differs from name.
func closest(name string, keys, labels []string) []string {
	var hits []scored
	for i, key := range keys {
		if labels[i] == name {
			continue
		}
		score, err := edlib.StringsSimilarity(name, key, edlib.JaroWinkler)
		if err != nil || score < suggestionThreshold {
			continue
		}
		hits = append(hits, scored{labels[i], score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].name < hits[j].name
	})
	if len(hits) > maxSuggestions {
		hits = hits[:maxSuggestions]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

func suggestClasses(name string, base *mapping.Tree) []string {
	names := make([]string, 0, base.ClassCount())
	for _, c := range base.Classes() {
		names = append(names, c.SrcName)
	}
	return closest(name, names, names)
}

func suggestFields(name string, bc *mapping.ClassMapping) []string {
	if bc == nil {
		return nil
	}
	var keys, labels []string
	for _, f := range bc.Fields() {
		keys = append(keys, f.SrcName)
		labels = append(labels, f.SrcName+":"+f.SrcDesc)
	}
	return closest(name, keys, labels)
}

func suggestMethods(name string, bc *mapping.ClassMapping) []string {
	if bc == nil {
		return nil
	}
	var keys, labels []string
	for _, m := range bc.Methods() {
		keys = append(keys, m.SrcName)
		labels = append(labels, m.SrcName+m.SrcDesc)
	}
	return closest(name, keys, labels)
}
