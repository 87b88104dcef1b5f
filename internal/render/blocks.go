package render

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind is the kind of a layout block.
type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockParagraph
	BlockListItem
	BlockCode
	BlockQuote
	BlockRule
	BlockTable
)

// Block is one layout unit of a parsed Markdown document. Renderers lay
// blocks out top to bottom.
type Block struct {
	Kind    BlockKind
	Level   int // heading level
	Depth   int // list nesting, 0 for top level
	Ordered bool
	Number  int
	Text    string
	Rows    [][]string // table rows, the first one is the header
}

// Marker returns the list marker for list item blocks.
func (b Block) Marker() string {
	if b.Kind != BlockListItem {
		return ""
	}
	if b.Ordered {
		return strconv.Itoa(b.Number) + "."
	}
	return "•"
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Parse splits Markdown content into layout blocks.
func Parse(content string) []Block {
	src := []byte(content)
	root := markdown.Parser().Parse(text.NewReader(src))
	p := &blockParser{src: src}
	p.container(root, 0)
	return p.blocks
}

type blockParser struct {
	src    []byte
	blocks []Block
}

func (p *blockParser) container(n ast.Node, depth int) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		p.block(c, depth)
	}
}

func (p *blockParser) block(n ast.Node, depth int) {
	switch node := n.(type) {
	case *ast.Heading:
		p.emit(Block{Kind: BlockHeading, Level: node.Level, Text: p.inline(node)})
	case *ast.Paragraph, *ast.TextBlock:
		p.emit(Block{Kind: BlockParagraph, Depth: depth, Text: p.inline(node)})
	case *ast.List:
		p.list(node, depth)
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		p.emit(Block{Kind: BlockCode, Text: strings.TrimRight(p.lines(node), "\n")})
	case *ast.ThematicBreak:
		p.emit(Block{Kind: BlockRule})
	case *ast.Blockquote:
		start := len(p.blocks)
		p.container(node, depth)
		for i := start; i < len(p.blocks); i++ {
			if p.blocks[i].Kind == BlockParagraph {
				p.blocks[i].Kind = BlockQuote
			}
		}
	case *east.Table:
		p.table(node)
	default:
		p.container(node, depth)
	}
}

func (p *blockParser) list(list *ast.List, depth int) {
	number := list.Start
	if number == 0 {
		number = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		first := item.FirstChild()
		b := Block{Kind: BlockListItem, Depth: depth, Ordered: list.IsOrdered(), Number: number}
		switch first.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			b.Text = p.inline(first)
			first = first.NextSibling()
		}
		p.emit(b)
		for c := first; c != nil; c = c.NextSibling() {
			p.block(c, depth+1)
		}
		number++
	}
}

func (p *blockParser) table(t *east.Table) {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, p.inline(cell))
		}
		rows = append(rows, cells)
	}
	p.emit(Block{Kind: BlockTable, Rows: rows})
}

func (p *blockParser) emit(b Block) {
	p.blocks = append(p.blocks, b)
}

func (p *blockParser) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(p.src))
	}
	return b.String()
}

// inline flattens the inline children of n into plain text.
func (p *blockParser) inline(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := c.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(p.src))
			if node.HardLineBreak() {
				b.WriteString("\n")
			} else if node.SoftLineBreak() {
				b.WriteString(" ")
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.URL(p.src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *east.TaskCheckBox:
			if node.IsChecked {
				b.WriteString("[x] ")
			} else {
				b.WriteString("[ ] ")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
