// Package document provides a structured view over markdown text.
//
// LLM responses arrive as free-form markdown; the plan engine only ever
// consumes them through this model: named sections (one per heading), each
// yielding lists, fenced code blocks and paragraphs in document order.
package document

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Link is a hyperlink embedded in a block.
type Link struct {
	Href  string
	Title string
}

// KV is one "Key: value" pair extracted from a list item.
type KV struct {
	Key   string
	Value string
}

// Block is one markdown block inside a section.
type Block interface {
	// Text returns the block rendered as plain text. Inline links keep
	// their markdown form so values stay round-trippable.
	Text() string
	// Links returns the hyperlinks embedded in the block.
	Links() []Link
}

// Paragraph is a plain text block.
type Paragraph struct {
	text  string
	links []Link
}

func (p *Paragraph) Text() string  { return p.text }
func (p *Paragraph) Links() []Link { return p.links }

// CodeBlock is a fenced code block.
type CodeBlock struct {
	// Info is the fence info string (e.g. "json").
	Info    string
	Literal string
}

func (c *CodeBlock) Text() string  { return c.Literal }
func (c *CodeBlock) Links() []Link { return nil }

// List is an ordered or unordered list.
type List struct {
	Ordered bool
	items   []*ListItem
}

func (l *List) Items() []*ListItem { return l.items }

func (l *List) Text() string {
	var parts []string
	for _, it := range l.items {
		parts = append(parts, it.Text())
	}
	return strings.Join(parts, "\n")
}

func (l *List) Links() []Link {
	var links []Link
	for _, it := range l.items {
		links = append(links, it.links...)
	}
	return links
}

// ListItem is one item of a List, including any nested list content.
type ListItem struct {
	text  string
	links []Link
}

func (li *ListItem) Text() string  { return li.text }
func (li *ListItem) Links() []Link { return li.links }

// KeyValues splits the item's lines on the first colon, yielding the
// item's "Key: value" pairs in order. Lines without a colon extend the
// previous pair's value, so wrapped values survive.
func (li *ListItem) KeyValues() []KV {
	var pairs []KV
	for _, line := range strings.Split(li.text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := splitKeyValue(line)
		if !ok {
			if len(pairs) > 0 {
				pairs[len(pairs)-1].Value = strings.TrimSpace(pairs[len(pairs)-1].Value + "\n" + line)
			}
			continue
		}
		pairs = append(pairs, KV{Key: key, Value: value})
	}
	return pairs
}

// splitKeyValue splits "Key: value" at the first colon that is not part
// of a link or URL (a colon followed by "//" does not terminate a key).
func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 || strings.HasPrefix(line[idx:], "://") {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// Section is the content between one heading and the next.
type Section struct {
	Title  string
	Level  int
	blocks []Block
}

func (s *Section) Blocks() []Block { return s.blocks }

// Key returns the section's normalized lookup key.
func (s *Section) Key() string { return Key(s.Title) }

// Lists returns the section's lists in document order.
func (s *Section) Lists() []*List {
	var lists []*List
	for _, b := range s.blocks {
		if l, ok := b.(*List); ok {
			lists = append(lists, l)
		}
	}
	return lists
}

// CodeBlocks returns the section's fenced code blocks in document order.
func (s *Section) CodeBlocks() []*CodeBlock {
	var blocks []*CodeBlock
	for _, b := range s.blocks {
		if c, ok := b.(*CodeBlock); ok {
			blocks = append(blocks, c)
		}
	}
	return blocks
}

// Text returns the section's concatenated block text.
func (s *Section) Text() string {
	var parts []string
	for _, b := range s.blocks {
		if t := strings.TrimSpace(b.Text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Document is a parsed markdown response.
type Document struct {
	sections []*Section
}

// Sections returns every section in document order.
func (d *Document) Sections() []*Section { return d.sections }

// Section returns the first section whose normalized title matches key,
// or nil.
func (d *Document) Section(key string) *Section {
	key = Key(key)
	for _, s := range d.sections {
		if s.Key() == key {
			return s
		}
	}
	return nil
}

// Key normalizes a heading title for lookup: lowercased, trimmed,
// internal whitespace collapsed.
func Key(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

var linkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// LinksIn extracts markdown-form links from rendered block text, such as
// a key/value pair's value.
func LinksIn(text string) []Link {
	var links []Link
	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		links = append(links, Link{Title: m[1], Href: m[2]})
	}
	return links
}

// Parse builds a Document from raw markdown. Content before the first
// heading is collected into an untitled level-0 section.
func Parse(input string) *Document {
	src := []byte(input)
	root := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	doc := &Document{}
	current := &Section{}
	flush := func() {
		if current.Title != "" || len(current.blocks) > 0 {
			doc.sections = append(doc.sections, current)
		}
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			flush()
			title, _ := renderInline(h, src)
			current = &Section{Title: strings.TrimSpace(title), Level: h.Level}
			continue
		}
		if b := buildBlock(node, src); b != nil {
			current.blocks = append(current.blocks, b)
		}
	}
	flush()
	return doc
}

// buildBlock converts one top-level markdown node into a Block.
func buildBlock(node ast.Node, src []byte) Block {
	switch n := node.(type) {
	case *ast.FencedCodeBlock:
		return &CodeBlock{
			Info:    string(n.Language(src)),
			Literal: blockLines(n, src),
		}
	case *ast.CodeBlock:
		return &CodeBlock{Literal: blockLines(n, src)}
	case *ast.List:
		list := &List{Ordered: n.IsOrdered()}
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			list.items = append(list.items, buildListItem(item, src))
		}
		return list
	case *ast.Paragraph, *ast.TextBlock, *ast.Blockquote:
		text, links := renderInline(n, src)
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
		return &Paragraph{text: text, links: links}
	default:
		return nil
	}
}

// buildListItem flattens a list item and its nested lists into lines.
func buildListItem(item ast.Node, src []byte) *ListItem {
	li := &ListItem{}
	var lines []string
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.List:
			for nested := c.FirstChild(); nested != nil; nested = nested.NextSibling() {
				sub := buildListItem(nested, src)
				lines = append(lines, sub.text)
				li.links = append(li.links, sub.links...)
			}
		default:
			text, links := renderInline(c, src)
			if t := strings.TrimSpace(text); t != "" {
				lines = append(lines, t)
			}
			li.links = append(li.links, links...)
		}
	}
	li.text = strings.Join(lines, "\n")
	return li
}

// blockLines concatenates the raw source lines of a code block.
func blockLines(node ast.Node, src []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// renderInline renders a node's inline content as plain text, keeping
// links in markdown form and collecting them.
func renderInline(node ast.Node, src []byte) (string, []Link) {
	var b strings.Builder
	var links []Link
	walkInline(node, src, &b, &links)
	return b.String(), links
}

func walkInline(node ast.Node, src []byte, b *strings.Builder, links *[]Link) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.Link:
			label, _ := renderInline(n, src)
			href := string(n.Destination)
			b.WriteString("[" + label + "](" + href + ")")
			*links = append(*links, Link{Title: label, Href: href})
		case *ast.AutoLink:
			url := string(n.URL(src))
			b.WriteString(url)
			*links = append(*links, Link{Title: url, Href: url})
		case *ast.CodeSpan:
			label, _ := renderInline(n, src)
			b.WriteString(label)
		default:
			walkInline(child, src, b, links)
		}
	}
}
