// Package markdown renders assistant markdown to ANSI-styled terminal
// output using goldmark for parsing and lipgloss for styling.
package markdown

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/murmur"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Render parses markdown source and returns ANSI-styled output wrapped
// to width. Code blocks are rendered verbatim behind a gutter.
func Render(source string, width int, theme murmur.Theme) string {
	if source == "" {
		return ""
	}
	r := renderer{
		heading: lipgloss.NewStyle().Foreground(ansi(theme.Accent)).Bold(true),
		em:      lipgloss.NewStyle().Italic(true),
		strong:  lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(ansi(theme.Muted)).Faint(true),
		link:    lipgloss.NewStyle().Underline(true),
		wrap:    lipgloss.NewStyle().Width(width),
	}
	doc := goldmark.DefaultParser().Parse(text.NewReader([]byte(source)))
	var buf bytes.Buffer
	r.blocks(doc, []byte(source), &buf)
	return strings.TrimRight(buf.String(), "\n")
}

type renderer struct {
	heading lipgloss.Style
	em      lipgloss.Style
	strong  lipgloss.Style
	muted   lipgloss.Style
	link    lipgloss.Style
	wrap    lipgloss.Style
}

func ansi(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

func (r renderer) blocks(parent ast.Node, src []byte, buf *bytes.Buffer) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		r.block(n, src, buf)
		if n.NextSibling() != nil {
			buf.WriteByte('\n')
		}
	}
}

func (r renderer) block(n ast.Node, src []byte, buf *bytes.Buffer) {
	switch n := n.(type) {
	case *ast.Heading:
		buf.WriteString(r.wrap.Render(r.heading.Render(r.inline(n, src))))
		buf.WriteByte('\n')
	case *ast.Paragraph, *ast.TextBlock:
		buf.WriteString(r.wrap.Render(r.inline(n, src)))
		buf.WriteByte('\n')
	case *ast.FencedCodeBlock:
		if lang := string(n.Language(src)); lang != "" {
			buf.WriteString(r.muted.Render(lang))
			buf.WriteByte('\n')
		}
		r.code(n, src, buf)
	case *ast.CodeBlock:
		r.code(n, src, buf)
	case *ast.List:
		r.list(n, src, buf, 0)
	default:
		r.blocks(n, src, buf)
	}
}

func (r renderer) code(n ast.Node, src []byte, buf *bytes.Buffer) {
	gutter := r.muted.Render("│") + " "
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.WriteString(gutter)
		buf.WriteString(strings.TrimRight(string(seg.Value(src)), "\n"))
		buf.WriteByte('\n')
	}
}

func (r renderer) list(n *ast.List, src []byte, buf *bytes.Buffer, depth int) {
	indent := strings.Repeat("  ", depth)
	num := n.Start
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.List:
				r.list(c, src, buf, depth+1)
			default:
				buf.WriteString(indent + marker + r.inline(c, src))
				buf.WriteByte('\n')
				marker = strings.Repeat(" ", len(marker))
			}
		}
	}
}

func (r renderer) inline(parent ast.Node, src []byte) string {
	var buf bytes.Buffer
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(src))
			if n.SoftLineBreak() {
				buf.WriteByte(' ')
			}
			if n.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.Emphasis:
			inner := r.inline(n, src)
			if n.Level >= 2 {
				buf.WriteString(r.strong.Render(inner))
			} else {
				buf.WriteString(r.em.Render(inner))
			}
		case *ast.CodeSpan:
			buf.WriteString(r.strong.Render(r.inline(n, src)))
		case *ast.Link:
			buf.WriteString(r.link.Render(r.inline(n, src)))
			buf.WriteString(r.muted.Render(" (" + string(n.Destination) + ")"))
		case *ast.AutoLink:
			buf.WriteString(r.link.Render(string(n.URL(src))))
		default:
			buf.WriteString(r.inline(n, src))
		}
	}
	return buf.String()
}
