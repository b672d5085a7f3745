package manual

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// orderedTable is a string map that remembers first-insertion order.
// Overwriting a key keeps its position and replaces its value.
type orderedTable struct {
	keys   []string
	values map[string]string
}

func newOrderedTable() *orderedTable {
	return &orderedTable{values: make(map[string]string)}
}

func (t *orderedTable) set(k, v string) {
	if _, ok := t.values[k]; !ok {
		t.keys = append(t.keys, k)
	}
	t.values[k] = v
}

// Len returns the number of keys.
func (t *orderedTable) Len() int { return len(t.keys) }

// Keys returns keys in table order.
func (t *orderedTable) Keys() []string { return append([]string(nil), t.keys...) }

// Get returns the value stored for k.
func (t *orderedTable) Get(k string) (string, bool) {
	v, ok := t.values[k]
	return v, ok
}

// KeywordTable maps keyword phrases to answer templates.
type KeywordTable struct{ orderedTable }

// SizeTable maps size conditions ("162cm", "160-165cm", "55kg") to size labels.
type SizeTable struct{ orderedTable }

// Index is the lookup state derived from a set of manuals. Build a new
// one whenever the manuals change.
type Index struct {
	Keywords *KeywordTable
	Sizes    *SizeTable
}

// SizePlaceholder in a keyword template is replaced by the recommended size.
const SizePlaceholder = "[사이즈]"

// BuildIndex parses keyword and size-chart manuals. Later duplicates of a
// keyword or size condition overwrite earlier ones.
func BuildIndex(entries []Entry) *Index {
	idx := &Index{
		Keywords: &KeywordTable{*newOrderedTable()},
		Sizes:    &SizeTable{*newOrderedTable()},
	}
	for _, e := range entries {
		switch e.Type {
		case TypeKeyword:
			for _, kv := range ParseKeywordManual(e.Content) {
				idx.Keywords.set(kv[0], kv[1])
			}
		case TypeSizeChart:
			for _, kv := range ParseSizeData(e.SizeData) {
				idx.Sizes.set(kv[0], kv[1])
			}
		}
	}
	return idx
}

// ParseKeywordManual reads "keyword: answer" lines. Only the first colon
// separates; lines without a keyword or answer are skipped.
func ParseKeywordManual(content string) [][2]string {
	var out [][2]string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out = append(out, [2]string{k, v})
	}
	return out
}

// ParseSizeData reads "condition → size" lines ("->" is accepted too).
func ParseSizeData(content string) [][2]string {
	var out [][2]string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		sep := "→"
		if !strings.Contains(line, sep) {
			sep = "->"
		}
		cond, size, ok := strings.Cut(line, sep)
		if !ok {
			continue
		}
		cond, size = strings.TrimSpace(cond), strings.TrimSpace(size)
		if cond == "" || size == "" {
			continue
		}
		out = append(out, [2]string{cond, size})
	}
	return out
}

// fold puts text in the form used for matching: composed Hangul
// (posts typed on macOS arrive decomposed), narrow ASCII for full-width
// digits and letters, lower case.
func fold(s string) string {
	return strings.ToLower(width.Fold.String(norm.NFC.String(s)))
}

// FindBestKeywordMatch returns the first keyword, in table order, for which
// at least half (rounded up) of its whitespace-separated words appear in
// the folded question. Words of two bytes or fewer never count.
func (idx *Index) FindBestKeywordMatch(question string) (string, bool) {
	q := fold(question)
	for _, kw := range idx.Keywords.keys {
		words := strings.Fields(fold(kw))
		if len(words) == 0 {
			continue
		}
		matched := 0
		for _, w := range words {
			if len(w) > 2 && strings.Contains(q, w) {
				matched++
			}
		}
		if matched >= (len(words)+1)/2 {
			return kw, true
		}
	}
	return "", false
}

var (
	heightRe = regexp.MustCompile(`(?i)(\d+)\s*cm|키\s*(\d+)|신장\s*(\d+)`)
	weightRe = regexp.MustCompile(`(?i)(\d+)\s*kg|몸무게\s*(\d+)|체중\s*(\d+)`)
	rangeRe  = regexp.MustCompile(`(\d+)-(\d+)\s*cm`)
)

// firstNumber returns the first non-empty capture group of re in s.
func firstNumber(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// RecommendSize extracts a height or weight from the question and looks
// it up in the size table: first as a substring of a condition, then
// against "<min>-<max>cm" height ranges.
func (idx *Index) RecommendSize(question string) (string, bool) {
	question = fold(question)
	height, hasHeight := firstNumber(heightRe, question)
	weight, hasWeight := firstNumber(weightRe, question)
	if !hasHeight && !hasWeight {
		return "", false
	}

	for _, cond := range idx.Sizes.keys {
		c := fold(cond)
		if hasHeight && strings.Contains(c, strconv.Itoa(height)) {
			return idx.Sizes.values[cond], true
		}
		if hasWeight && strings.Contains(c, strconv.Itoa(weight)) {
			return idx.Sizes.values[cond], true
		}
	}

	if !hasHeight {
		return "", false
	}
	for _, cond := range idx.Sizes.keys {
		m := rangeRe.FindStringSubmatch(fold(cond))
		if m == nil {
			continue
		}
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if height >= lo && height <= hi {
			return idx.Sizes.values[cond], true
		}
	}
	return "", false
}

// KeywordAnswer is a keyword hit with its filled-in template.
type KeywordAnswer struct {
	Keyword   string
	Template  string
	Answer    string
	SizeLabel string
}

// Answer finds a keyword template for the question and substitutes the
// recommended size into it when one can be derived.
func (idx *Index) Answer(question string) (*KeywordAnswer, bool) {
	kw, ok := idx.FindBestKeywordMatch(question)
	if !ok {
		return nil, false
	}
	tmpl := idx.Keywords.values[kw]
	ka := &KeywordAnswer{Keyword: kw, Template: tmpl, Answer: tmpl}
	if size, ok := idx.RecommendSize(question); ok {
		ka.SizeLabel = size
		ka.Answer = strings.Replace(tmpl, SizePlaceholder, size, 1)
	}
	return ka, true
}
