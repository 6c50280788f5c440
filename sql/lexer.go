package sql

type Token struct {
	Type  TokenType
	Value string
	// Quoted marks identifiers written as "name"; they never match keywords.
	Quoted bool
}

type TokenType int

const (
	Identifier TokenType = iota
	DatabaseIdentifier
	DatabasesIdentifier
	TableIdentifier
	TablesIdentifier
	Show
	In
	Wildcard
	String
	Int
	Float
	Placeholder
	Primary
	Key
	Comma
	Dot
	Semicolon
	ParenOpen
	ParenClose
	Equals
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	And
	Or
	Not
	Is
	Null
	Like
	True
	False
	Select
	From
	Where
	Limit
	Offset
	Order
	By
	Asc
	Desc
	Count
	Distinct
	As
	If
	Exists
	Create
	Drop
	Insert
	Update
	Delete
	Set
	Into
	Values
	Begin
	Transaction
	Commit
	Rollback
	Describe
	EOF
	Unknown
)

var tokenNames = map[TokenType]string{
	DatabaseIdentifier:  "DatabaseIdentifier",
	DatabasesIdentifier: "DatabasesIdentifier",
	TableIdentifier:     "TableIdentifier",
	TablesIdentifier:    "TablesIdentifier",
	Show:                "Show",
	In:                  "In",
	Wildcard:            "Wildcard",
	Placeholder:         "Placeholder",
	Primary:             "Primary",
	Key:                 "Key",
	Comma:               "Comma",
	Dot:                 "Dot",
	Semicolon:           "Semicolon",
	ParenOpen:           "ParenOpen",
	ParenClose:          "ParenClose",
	Equals:              "Equals",
	NotEquals:           "NotEquals",
	LessThan:            "LessThan",
	GreaterThan:         "GreaterThan",
	LessThanOrEqual:     "LessThanOrEqual",
	GreaterThanOrEqual:  "GreaterThanOrEqual",
	And:                 "And",
	Or:                  "Or",
	Not:                 "Not",
	Is:                  "Is",
	Null:                "Null",
	Like:                "Like",
	True:                "True",
	False:               "False",
	Select:              "Select",
	From:                "From",
	Where:               "Where",
	Limit:               "Limit",
	Offset:              "Offset",
	Order:               "Order",
	By:                  "By",
	Asc:                 "Asc",
	Desc:                "Desc",
	Count:               "Count",
	Distinct:            "Distinct",
	As:                  "As",
	If:                  "If",
	Exists:              "Exists",
	Create:              "Create",
	Drop:                "Drop",
	Insert:              "Insert",
	Update:              "Update",
	Delete:              "Delete",
	Set:                 "Set",
	Into:                "Into",
	Values:              "Values",
	Begin:               "Begin",
	Transaction:         "Transaction",
	Commit:              "Commit",
	Rollback:            "Rollback",
	Describe:            "Describe",
	EOF:                 "EOF",
}

var keywords = map[string]TokenType{
	"DATABASE":    DatabaseIdentifier,
	"DATABASES":   DatabasesIdentifier,
	"TABLE":       TableIdentifier,
	"TABLES":      TablesIdentifier,
	"SHOW":        Show,
	"IN":          In,
	"PRIMARY":     Primary,
	"KEY":         Key,
	"AND":         And,
	"OR":          Or,
	"NOT":         Not,
	"IS":          Is,
	"NULL":        Null,
	"LIKE":        Like,
	"TRUE":        True,
	"FALSE":       False,
	"SELECT":      Select,
	"FROM":        From,
	"WHERE":       Where,
	"LIMIT":       Limit,
	"OFFSET":      Offset,
	"ORDER":       Order,
	"BY":          By,
	"ASC":         Asc,
	"DESC":        Desc,
	"COUNT":       Count,
	"DISTINCT":    Distinct,
	"AS":          As,
	"IF":          If,
	"EXISTS":      Exists,
	"CREATE":      Create,
	"DROP":        Drop,
	"INSERT":      Insert,
	"UPDATE":      Update,
	"DELETE":      Delete,
	"SET":         Set,
	"INTO":        Into,
	"VALUES":      Values,
	"BEGIN":       Begin,
	"TRANSACTION": Transaction,
	"COMMIT":      Commit,
	"ROLLBACK":    Rollback,
	"DESCRIBE":    Describe,
}

func (token Token) String() string {
	switch token.Type {
	case Identifier:
		if token.Quoted {
			return "QuotedIdentifier(" + token.Value + ")"
		}
		return "Identifier(" + token.Value + ")"
	case String:
		return "String(" + token.Value + ")"
	case Int:
		return "Int(" + token.Value + ")"
	case Float:
		return "Float(" + token.Value + ")"
	}
	if name, ok := tokenNames[token.Type]; ok {
		return name
	}
	return "Unknown(" + token.Value + ")"
}

type Lexer struct {
	sql          string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(sql string) *Lexer {
	lexer := &Lexer{sql: sql}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.sql) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.sql[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.sql) {
		return 0
	}
	return lexer.sql[lexer.readPosition]
}

func (lexer *Lexer) atEnd() bool {
	return lexer.position >= len(lexer.sql)
}

func (lexer *Lexer) NextToken() Token {
	var token Token

	lexer.skipWhitespace()

	switch lexer.ch {
	case ',':
		token = Token{Type: Comma, Value: ","}
	case '.':
		token = Token{Type: Dot, Value: "."}
	case ';':
		token = Token{Type: Semicolon, Value: ";"}
	case '(':
		token = Token{Type: ParenOpen, Value: "("}
	case ')':
		token = Token{Type: ParenClose, Value: ")"}
	case '*':
		token = Token{Type: Wildcard, Value: "*"}
	case '?':
		token = Token{Type: Placeholder, Value: "?"}
	case '\'':
		value, ok := lexer.readQuoted('\'')
		if !ok {
			return Token{Type: Unknown, Value: "'" + value}
		}
		token = Token{Type: String, Value: value}
	case '"':
		value, ok := lexer.readQuoted('"')
		if !ok {
			return Token{Type: Unknown, Value: `"` + value}
		}
		token = Token{Type: Identifier, Value: value, Quoted: true}
	case 0:
		if lexer.atEnd() {
			return Token{Type: EOF}
		}
		token = Token{Type: Unknown, Value: string(lexer.ch)}
	default:
		if isOperator(lexer.ch) {
			operator := lexer.readOperator()
			switch operator {
			case "=", "==":
				return Token{Type: Equals, Value: operator}
			case "!=", "<>":
				return Token{Type: NotEquals, Value: operator}
			case "<":
				return Token{Type: LessThan, Value: operator}
			case ">":
				return Token{Type: GreaterThan, Value: operator}
			case "<=":
				return Token{Type: LessThanOrEqual, Value: operator}
			case ">=":
				return Token{Type: GreaterThanOrEqual, Value: operator}
			default:
				return Token{Type: Unknown, Value: operator}
			}
		} else if isDigit(lexer.ch) || (lexer.ch == '-' && isDigit(lexer.peekChar())) {
			return lexer.readNumber()
		} else if isLetter(lexer.ch) {
			literal := lexer.readIdentifier()
			if tokenType, ok := keywords[toUpper(literal)]; ok {
				return Token{Type: tokenType, Value: literal}
			}
			return Token{Type: Identifier, Value: literal}
		}
		token = Token{Type: Unknown, Value: string(lexer.ch)}
	}

	lexer.readChar()
	return token
}

func (lexer *Lexer) PeekToken() Token {
	savedPosition := lexer.position
	savedReadPosition := lexer.readPosition
	savedCh := lexer.ch

	token := lexer.NextToken()

	lexer.position = savedPosition
	lexer.readPosition = savedReadPosition
	lexer.ch = savedCh

	return token
}

func (lexer *Lexer) skipWhitespace() {
	for lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r' {
		lexer.readChar()
	}
}

func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for isLetter(lexer.ch) || isDigit(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readQuoted reads a quote-delimited run where a doubled quote stands for
// one literal quote. It stops on the closing quote.
func (lexer *Lexer) readQuoted(quote byte) (string, bool) {
	var out []byte
	lexer.readChar() // skip opening quote
	for !lexer.atEnd() {
		if lexer.ch == quote {
			if lexer.peekChar() != quote {
				return string(out), true
			}
			lexer.readChar()
		}
		out = append(out, lexer.ch)
		lexer.readChar()
	}
	return string(out), false
}

func (lexer *Lexer) readNumber() Token {
	position := lexer.position
	if lexer.ch == '-' {
		lexer.readChar()
	}
	for isDigit(lexer.ch) {
		lexer.readChar()
	}
	if lexer.ch == '.' && isDigit(lexer.peekChar()) {
		lexer.readChar()
		for isDigit(lexer.ch) {
			lexer.readChar()
		}
		return Token{Type: Float, Value: lexer.sql[position:lexer.position]}
	}
	return Token{Type: Int, Value: lexer.sql[position:lexer.position]}
}

func (lexer *Lexer) readOperator() string {
	position := lexer.position
	for isOperator(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isOperator(ch byte) bool {
	return ch == '=' || ch == '!' || ch == '<' || ch == '>'
}

// toUpper converts a string to uppercase without allocating for ASCII strings
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'a' && s[j] <= 'z' {
					b[j] = s[j] - 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

func tokenize(sql string) []Token {
	lexer := NewLexer(sql)

	var tokens []Token

	for {
		token := lexer.NextToken()
		tokens = append(tokens, token)
		if token.Type == EOF || token.Type == Unknown {
			return tokens
		}
	}
}
