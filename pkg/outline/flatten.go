package outline

// FlatItem is one pre-order-flattened outline entry, carrying the dense
// sequential Index the Content Worker persists as ScriptChunk.section_index
// (§4.3.1 step 5).
type FlatItem struct {
	ID      int
	Level   int
	Type    string
	Title   string
	Content string
	Index   int
}

// Flatten walks the outline tree in pre-order (intro, sections, outro),
// dropping any node whose title and content are both empty, and assigns a
// dense 0-based Index across the surviving items.
func Flatten(o *Outline) []FlatItem {
	if o == nil {
		return []FlatItem{}
	}

	var flat []FlatItem
	counter := 0

	var walk func(n *Node, level int)
	walk = func(n *Node, level int) {
		counter++
		id := counter

		itemLevel := n.Level
		if itemLevel == 0 && level != 0 {
			itemLevel = level
		}

		title := n.Title
		content := n.Content
		if content == "" {
			content = title
		}

		if title == "" && content == "" {
			counter--
			return
		}

		flat = append(flat, FlatItem{
			ID:      id,
			Level:   itemLevel,
			Type:    n.Type,
			Title:   title,
			Content: content,
		})

		for _, child := range n.Items {
			childLevel := child.Level
			if childLevel == 0 {
				childLevel = itemLevel + 1
			}
			walk(child, childLevel)
		}
	}

	if o.Intro != nil {
		walk(o.Intro, 0)
	}
	for _, section := range o.Sections {
		walk(section, section.Level)
	}
	if o.Outro != nil {
		walk(o.Outro, 0)
	}

	for i := range flat {
		flat[i].Index = i
	}
	return flat
}
