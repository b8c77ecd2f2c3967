// Package outline parses an LLM-produced Markdown outline into the nested
// tree the pipeline persists and flattens, used by the Content Worker's
// generating_outline and content_generating stages (§4.3.1).
//
// No Markdown or outline library appears anywhere in the retrieved
// dependency corpus, so this parser is hand-rolled against a restricted
// grammar (ATX headings, bullet/numbered list items, and bare paragraphs)
// rather than pulled from a third-party package.
package outline

import (
	"regexp"
	"strings"
)

// Node is one heading, list item, or paragraph in the parsed outline tree.
type Node struct {
	Level   int
	Title   string
	Content string
	Type    string
	Items   []*Node
}

// Outline is the top-level parse result: an optional intro, the ordered
// sections in between, and an optional outro.
type Outline struct {
	Intro    *Node
	Sections []*Node
	Outro    *Node
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*\S)\s*$`)
	bulletRe  = regexp.MustCompile(`^(\s*)[-*+]\s+(.*\S)\s*$`)
	numberRe  = regexp.MustCompile(`^(\s*)\d+[.)]\s+(.*\S)\s*$`)
)

var (
	introKeywords = []string{"intro", "mở đầu", "giới thiệu", "引言"}
	outroKeywords = []string{"outro", "kết luận", "conclusion", "结论", "tổng kết", "cta", "call to action"}
	quoteKeywords = []string{"quote", "trích dẫn", "danh ngôn", "名言", "\""}
	storyKeywords = []string{"story", "câu chuyện", "ví dụ", "example", "故事", "例子"}
)

func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// classifyHeading mirrors the source's level<=2 vs level>=3 split: top-level
// headings become intro/outro/section markers, deeper ones become
// quote/story suggestions.
func classifyHeading(level int, title string) string {
	if level <= 2 {
		switch {
		case containsAny(title, introKeywords):
			return "intro"
		case containsAny(title, outroKeywords):
			return "outro"
		default:
			return "section_header"
		}
	}
	switch {
	case containsAny(title, quoteKeywords):
		return "quote_suggestion"
	case containsAny(title, storyKeywords):
		return "story_suggestion"
	default:
		return "point"
	}
}

func classifyListItem(content string) string {
	switch {
	case containsAny(content, quoteKeywords):
		return "quote_suggestion"
	case containsAny(content, storyKeywords):
		return "story_suggestion"
	default:
		return "point"
	}
}

// indentLevel maps leading whitespace width to a nesting depth, four spaces
// (or one tab) per level, offset below heading levels so list items always
// nest under the nearest open heading.
func indentLevel(indent string) int {
	width := 0
	for _, r := range indent {
		if r == '\t' {
			width += 4
		} else {
			width++
		}
	}
	return 10 + width/4
}

// Parse builds the nested outline tree from raw Markdown text. Returns nil
// if the text yields no structure at all.
func Parse(markdown string) *Outline {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	root := &Node{Level: -1}
	stack := []*Node{root}

	lines := strings.Split(markdown, "\n")
	var paragraphBuf []string
	paragraphIndent := ""

	flushParagraph := func() {
		if len(paragraphBuf) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(paragraphBuf, " "))
		paragraphBuf = nil
		if content == "" {
			return
		}
		level := indentLevel(paragraphIndent)
		parent := topAtOrBelow(stack, level)
		node := &Node{Level: level, Title: content, Content: content, Type: "point"}
		parent.Items = append(parent.Items, node)
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		if strings.TrimSpace(line) == "" {
			flushParagraph()
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			flushParagraph()
			level := len(m[1])
			title := strings.TrimSpace(m[2])

			for len(stack) > 1 && stack[len(stack)-1].Level >= level {
				stack = stack[:len(stack)-1]
			}
			parent := stack[len(stack)-1]

			node := &Node{Level: level, Title: title, Content: title, Type: classifyHeading(level, title)}
			parent.Items = append(parent.Items, node)
			stack = append(stack, node)
			continue
		}

		if m := bulletRe.FindStringSubmatch(line); m != nil {
			flushParagraph()
			appendListItem(&stack, m[1], m[2])
			continue
		}

		if m := numberRe.FindStringSubmatch(line); m != nil {
			flushParagraph()
			appendListItem(&stack, m[1], m[2])
			continue
		}

		if len(paragraphBuf) == 0 {
			paragraphIndent = leadingWhitespace(line)
		}
		paragraphBuf = append(paragraphBuf, strings.TrimSpace(line))
	}
	flushParagraph()

	if len(root.Items) == 0 {
		return nil
	}

	out := &Outline{}
	items := root.Items

	if len(items) > 0 && items[0].Type == "intro" {
		out.Intro = items[0]
		items = items[1:]
	}
	if len(items) > 0 && items[len(items)-1].Type == "outro" {
		out.Outro = items[len(items)-1]
		items = items[:len(items)-1]
	}
	out.Sections = items

	return out
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i]
}

func appendListItem(stack *[]*Node, indent, content string) {
	level := indentLevel(indent)
	s := *stack
	for len(s) > 1 && s[len(s)-1].Level >= level {
		s = s[:len(s)-1]
	}
	parent := s[len(s)-1]
	*stack = s

	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	node := &Node{Level: level, Title: content, Content: content, Type: classifyListItem(content)}
	parent.Items = append(parent.Items, node)
}

func topAtOrBelow(stack []*Node, level int) *Node {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Level < level {
			return stack[i]
		}
	}
	return stack[0]
}
