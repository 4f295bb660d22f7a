package article

// Kind is the variant of a ContentBlock.
type Kind int

const (
	KindParagraph Kind = iota
	KindHeading
	KindListItem
	KindQuote
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindParagraph:
		return "paragraph"
	case KindHeading:
		return "heading"
	case KindListItem:
		return "list_item"
	case KindQuote:
		return "quote"
	case KindMedia:
		return "media"
	default:
		return "unknown"
	}
}

// Block is one unit of an article body in reading order.
//
// For text blocks Markup is the inner markup that is sent for translation and
// Slot is the token standing in for it in the body skeleton. For media blocks
// Markup is the verbatim outer markup and Slot is the media token.
type Block struct {
	Index  int    `json:"index"`
	Kind   Kind   `json:"kind"`
	Level  int    `json:"level,omitempty"`
	Tag    string `json:"tag"`
	Markup string `json:"markup"`
	Slot   string `json:"slot"`
}

// Translatable reports whether the block carries text for the service.
func (b Block) Translatable() bool {
	return b.Kind != KindMedia
}

// Len is the size of the block in characters, used for chunk budgeting.
func (b Block) Len() int {
	return len([]rune(b.Markup))
}

// Token records markup that must come back byte-identical.
type Token struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Original string `json:"original"`
}
