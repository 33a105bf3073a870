package token

type Type int

const (
	EOF Type = iota
	Ident
	Number
	LBracket
	RBracket
	Eq
	Plus
	Minus
	Star
	Slash
	Semi
	Other
)

// PunctMap maps single-character punctuation to its token type.
// Characters missing from the map lex as Other.
var PunctMap = map[rune]Type{
	'[': LBracket,
	']': RBracket,
	'=': Eq,
	'+': Plus,
	'-': Minus,
	'*': Star,
	'/': Slash,
	';': Semi,
}

var typeNames = map[Type]string{
	EOF:      "EOF",
	Ident:    "Ident",
	Number:   "Number",
	LBracket: "LBracket",
	RBracket: "RBracket",
	Eq:       "Eq",
	Plus:     "Plus",
	Minus:    "Minus",
	Star:     "Star",
	Slash:    "Slash",
	Semi:     "Semi",
	Other:    "Other",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Token is one lexical unit. Value holds the exact source text and is
// empty only for the EOF sentinel.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// IsWord reports whether the token is a letters/digits/underscore run.
func (t Token) IsWord() bool { return t.Type == Ident || t.Type == Number }

// Text renders the token for diagnostics.
func (t Token) Text() string {
	if t.Type == EOF {
		return "end of input"
	}
	return t.Value
}
