package manual

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Context is the manual text handed to the model, with what was left out.
type Context struct {
	Text      string  `json:"text"`
	Included  []int64 `json:"included"`
	Omitted   []int64 `json:"omitted,omitempty"`
	Truncated bool    `json:"truncated"`
}

// BuildContext renders manuals for the prompt, newest first, until budget
// runes are used or maxEntries are included. A newest entry that alone
// exceeds the budget is cut to fit. Zero limits mean unlimited.
func BuildContext(entries []Entry, budget, maxEntries int) Context {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})

	var (
		b    strings.Builder
		ctx  Context
		used int
	)
	for _, e := range sorted {
		block := renderEntry(e)
		if block == "" {
			continue
		}
		full := maxEntries > 0 && len(ctx.Included) >= maxEntries
		n := utf8.RuneCountInString(block)
		if !full && budget > 0 && used+n > budget {
			if len(ctx.Included) == 0 {
				block = truncateRunes(block, budget)
				n = budget
				ctx.Truncated = true
			} else {
				full = true
			}
		}
		if full {
			ctx.Omitted = append(ctx.Omitted, e.ID)
			ctx.Truncated = true
			continue
		}
		b.WriteString(block)
		used += n
		ctx.Included = append(ctx.Included, e.ID)
	}
	ctx.Text = strings.TrimSpace(b.String())
	return ctx
}

// renderEntry formats one manual as a titled block.
func renderEntry(e Entry) string {
	content := e.Content
	if e.Type == TypeSizeChart && e.SizeData != "" {
		content = e.SizeData
	}
	if isMarkdown(e.FileName) {
		content = PlainText(content)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	return fmt.Sprintf("\n제목: %s\n내용: %s\n", e.Title, content)
}

func isMarkdown(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".markdown")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// PlainText flattens markdown to its text content, one block per line.
func PlainText(src string) string {
	source := []byte(src)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(blankLines.ReplaceAllString(b.String(), "\n\n"))
}
