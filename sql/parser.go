package sql

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/nickyhof/storeadapter/core"
)

type StatementType int

const (
	SelectStatementType StatementType = iota
	InsertStatementType
	UpdateStatementType
	DeleteStatementType
	CreateTableStatementType
	DropTableStatementType
	CreateDatabaseStatementType
	DropDatabaseStatementType
	BeginStatementType
	CommitStatementType
	RollbackStatementType
	DescribeStatementType
	ShowDatabasesStatementType
	ShowTablesStatementType
)

type Statement interface {
	Type() StatementType
}

// OperandKind tells where an operand's value comes from at execution time.
type OperandKind int

const (
	ColumnOperand OperandKind = iota
	LiteralOperand
	PlaceholderOperand
	NullOperand
)

// Operand is a column reference, a literal or a positional bind parameter.
// Placeholders carry their 0-based position in Index.
type Operand struct {
	Kind  OperandKind
	Value string
	Index int
}

func Column(name string) Operand  { return Operand{Kind: ColumnOperand, Value: name} }
func Literal(value string) Operand { return Operand{Kind: LiteralOperand, Value: value} }
func Param(index int) Operand      { return Operand{Kind: PlaceholderOperand, Index: index} }

func (o Operand) String() string {
	switch o.Kind {
	case PlaceholderOperand:
		return "?" + strconv.Itoa(o.Index)
	case NullOperand:
		return "NULL"
	case LiteralOperand:
		return "'" + o.Value + "'"
	default:
		return o.Value
	}
}

type SelectItem struct {
	Expr  Operand
	Alias string
}

// Name is the output column name of the item.
func (item SelectItem) Name() string {
	if item.Alias != "" {
		return item.Alias
	}
	return item.Expr.Value
}

type SelectStatement struct {
	Database string
	Table    string
	// Items is empty for SELECT *.
	Items    []SelectItem
	Distinct bool
	CountAll bool
	Where    WhereClause
	OrderBy  []OrderByClause
	Limit    *Operand
	Offset   *Operand
}

type InsertStatement struct {
	Database string
	Table    string
	Columns  []string
	Rows     [][]Operand
}

type UpdateStatement struct {
	Database string
	Table    string
	Updates  []SetClause
	Where    WhereClause
}

type SetClause struct {
	Column string
	Value  Operand
}

type DeleteStatement struct {
	Database string
	Table    string
	Where    WhereClause
}

type CreateTableStatement struct {
	Database    string
	Table       string
	Columns     []core.Column
	IfNotExists bool
}

type DropTableStatement struct {
	Database string
	Table    string
	IfExists bool
}

type CreateDatabaseStatement struct {
	Database    string
	IfNotExists bool
}

type DropDatabaseStatement struct {
	Database string
	IfExists bool
}

type BeginStatement struct{}
type CommitStatement struct{}
type RollbackStatement struct{}

type DescribeStatement struct {
	Database string
	Table    string
}

type ShowDatabasesStatement struct{}

type ShowTablesStatement struct {
	Database string
}

type WhereClause struct {
	Conditions []WhereCondition
	LogicalOps []LogicalOperator // AND/OR between conditions
}

// Present reports whether the statement had a WHERE clause.
func (w WhereClause) Present() bool {
	return len(w.Conditions) > 0
}

type LogicalOperator int

const (
	LogicalAnd LogicalOperator = iota
	LogicalOr
)

type WhereCondition struct {
	Left     Operand
	Operator WhereOperator
	Right    Operand
	InValues []Operand // for IN operator
	Negated  bool      // for NOT
}

type WhereOperator int

const (
	EqualsOperator WhereOperator = iota
	NotEqualsOperator
	LessThanOperator
	GreaterThanOperator
	LessThanOrEqualOperator
	GreaterThanOrEqualOperator
	LikeOperator
	IsNullOperator
	IsNotNullOperator
	InOperator
)

type OrderByClause struct {
	Column     string
	Descending bool
}

func (s SelectStatement) Type() StatementType         { return SelectStatementType }
func (s InsertStatement) Type() StatementType         { return InsertStatementType }
func (s UpdateStatement) Type() StatementType         { return UpdateStatementType }
func (s DeleteStatement) Type() StatementType         { return DeleteStatementType }
func (s CreateTableStatement) Type() StatementType    { return CreateTableStatementType }
func (s DropTableStatement) Type() StatementType      { return DropTableStatementType }
func (s CreateDatabaseStatement) Type() StatementType { return CreateDatabaseStatementType }
func (s DropDatabaseStatement) Type() StatementType   { return DropDatabaseStatementType }
func (s BeginStatement) Type() StatementType          { return BeginStatementType }
func (s CommitStatement) Type() StatementType         { return CommitStatementType }
func (s RollbackStatement) Type() StatementType       { return RollbackStatementType }
func (s DescribeStatement) Type() StatementType       { return DescribeStatementType }
func (s ShowDatabasesStatement) Type() StatementType  { return ShowDatabasesStatementType }
func (s ShowTablesStatement) Type() StatementType     { return ShowTablesStatementType }

var ErrEmptyStatement = errors.New("empty statement")

type Parser struct {
	lexer  *Lexer
	params int
}

func NewParser(sql string) *Parser {
	return &Parser{lexer: NewLexer(sql)}
}

// Params returns how many positional placeholders the parsed statement has.
func (parser *Parser) Params() int {
	return parser.params
}

func (parser *Parser) Parse() (Statement, error) {
	statement, err := parser.parseStatement()
	if err != nil {
		return nil, err
	}

	token := parser.lexer.NextToken()
	if token.Type == Semicolon {
		token = parser.lexer.NextToken()
	}
	if token.Type != EOF {
		return nil, fmt.Errorf("unexpected %s after end of statement", token)
	}

	return statement, nil
}

func (parser *Parser) parseStatement() (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Select:
		return ParseSelect(parser)
	case Insert:
		return ParseInsert(parser)
	case Update:
		return ParseUpdate(parser)
	case Delete:
		return ParseDelete(parser)
	case Create:
		return ParseCreate(parser)
	case Drop:
		return ParseDrop(parser)
	case Begin:
		if parser.lexer.PeekToken().Type == Transaction {
			parser.lexer.NextToken()
		}
		return BeginStatement{}, nil
	case Commit:
		return CommitStatement{}, nil
	case Rollback:
		return RollbackStatement{}, nil
	case Describe, Desc:
		return ParseDescribe(parser)
	case Show:
		return ParseShow(parser)
	case EOF, Semicolon:
		return nil, ErrEmptyStatement
	default:
		return nil, fmt.Errorf("unknown statement type: %s", token)
	}
}

// Parse parses one statement and reports its placeholder count.
func Parse(sql string) (Statement, int, error) {
	parser := NewParser(sql)
	statement, err := parser.Parse()
	if err != nil {
		return nil, 0, err
	}
	return statement, parser.Params(), nil
}

func (parser *Parser) expect(tokenType TokenType, message string) (Token, error) {
	token := parser.lexer.NextToken()
	if token.Type != tokenType {
		return token, fmt.Errorf("%s, got %s", message, token)
	}
	return token, nil
}

func (parser *Parser) accept(tokenType TokenType) bool {
	if parser.lexer.PeekToken().Type == tokenType {
		parser.lexer.NextToken()
		return true
	}
	return false
}

// parseName reads a possibly quoted identifier.
func (parser *Parser) parseName(what string) (string, error) {
	token, err := parser.expect(Identifier, "expected "+what)
	if err != nil {
		return "", err
	}
	return token.Value, nil
}

// parseTableName reads table or database.table.
func (parser *Parser) parseTableName() (database, table string, err error) {
	table, err = parser.parseName("table name")
	if err != nil {
		return "", "", err
	}
	if parser.accept(Dot) {
		database = table
		table, err = parser.parseName("table name after '.'")
		if err != nil {
			return "", "", err
		}
	}
	return database, table, nil
}

// parseColumnRef reads column or table.column; the qualifier is dropped.
func (parser *Parser) parseColumnRef(first Token) (string, error) {
	name := first.Value
	if parser.accept(Dot) {
		next, err := parser.parseName("column name after '.'")
		if err != nil {
			return "", err
		}
		name = next
	}
	return name, nil
}

func (parser *Parser) placeholder() Operand {
	operand := Param(parser.params)
	parser.params++
	return operand
}

// parseOperand reads a value position: column, literal, NULL or placeholder.
func (parser *Parser) parseOperand() (Operand, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Placeholder:
		return parser.placeholder(), nil
	case String, Int, Float:
		return Literal(token.Value), nil
	case True:
		return Literal("true"), nil
	case False:
		return Literal("false"), nil
	case Null:
		return Operand{Kind: NullOperand}, nil
	case Identifier:
		name, err := parser.parseColumnRef(token)
		if err != nil {
			return Operand{}, err
		}
		return Column(name), nil
	default:
		return Operand{}, fmt.Errorf("expected value, got %s", token)
	}
}

// parseValue reads a value that cannot be a column reference.
func (parser *Parser) parseValue() (Operand, error) {
	operand, err := parser.parseOperand()
	if err != nil {
		return Operand{}, err
	}
	if operand.Kind == ColumnOperand {
		return Operand{}, fmt.Errorf("expected value, got column %s", operand.Value)
	}
	return operand, nil
}

func ParseSelect(parser *Parser) (Statement, error) {
	var selectStatement SelectStatement

	if parser.accept(Distinct) {
		selectStatement.Distinct = true
	}

	for {
		token := parser.lexer.NextToken()
		switch token.Type {
		case Wildcard:
			// SELECT *
		case Count:
			if _, err := parser.expect(ParenOpen, "expected '(' after COUNT"); err != nil {
				return nil, err
			}
			if _, err := parser.expect(Wildcard, "expected '*' in COUNT"); err != nil {
				return nil, err
			}
			if _, err := parser.expect(ParenClose, "expected ')' after COUNT(*"); err != nil {
				return nil, err
			}
			selectStatement.CountAll = true
			if alias, err := parser.parseAlias(); err != nil {
				return nil, err
			} else if alias != "" {
				selectStatement.Items = append(selectStatement.Items, SelectItem{Expr: Column("COUNT(*)"), Alias: alias})
			}
		case Identifier:
			// table.* selects everything as well
			if parser.lexer.PeekToken().Type == Dot {
				parser.lexer.NextToken()
				next := parser.lexer.NextToken()
				if next.Type == Wildcard {
					break
				}
				if next.Type != Identifier {
					return nil, fmt.Errorf("expected column name after '.', got %s", next)
				}
				token = next
			}
			alias, err := parser.parseAlias()
			if err != nil {
				return nil, err
			}
			selectStatement.Items = append(selectStatement.Items, SelectItem{Expr: Column(token.Value), Alias: alias})
		case String, Int, Float, True, False:
			value := token.Value
			if token.Type == True || token.Type == False {
				value = toLower(token.Value)
			}
			alias, err := parser.parseAlias()
			if err != nil {
				return nil, err
			}
			selectStatement.Items = append(selectStatement.Items, SelectItem{Expr: Literal(value), Alias: alias})
		default:
			return nil, fmt.Errorf("expected column list, got %s", token)
		}

		if !parser.accept(Comma) {
			break
		}
	}

	if _, err := parser.expect(From, "expected FROM"); err != nil {
		return nil, err
	}

	database, table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	selectStatement.Database = database
	selectStatement.Table = table

	if parser.accept(Where) {
		whereClause, err := ParseWhere(parser)
		if err != nil {
			return nil, err
		}
		selectStatement.Where = whereClause
	}

	if parser.accept(Order) {
		if _, err := parser.expect(By, "expected BY after ORDER"); err != nil {
			return nil, err
		}
		for {
			token, err := parser.expect(Identifier, "expected column in ORDER BY")
			if err != nil {
				return nil, err
			}
			column, err := parser.parseColumnRef(token)
			if err != nil {
				return nil, err
			}
			clause := OrderByClause{Column: column}
			if parser.accept(Desc) {
				clause.Descending = true
			} else {
				parser.accept(Asc)
			}
			selectStatement.OrderBy = append(selectStatement.OrderBy, clause)
			if !parser.accept(Comma) {
				break
			}
		}
	}

	if parser.accept(Limit) {
		limit, err := parser.parseCount("LIMIT")
		if err != nil {
			return nil, err
		}
		selectStatement.Limit = &limit
	}

	if parser.accept(Offset) {
		offset, err := parser.parseCount("OFFSET")
		if err != nil {
			return nil, err
		}
		selectStatement.Offset = &offset
	}

	return selectStatement, nil
}

func (parser *Parser) parseAlias() (string, error) {
	if !parser.accept(As) {
		return "", nil
	}
	return parser.parseName("alias after AS")
}

// parseCount reads a LIMIT/OFFSET argument: an integer or a placeholder.
func (parser *Parser) parseCount(clause string) (Operand, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Int:
		if _, err := strconv.Atoi(token.Value); err != nil {
			return Operand{}, fmt.Errorf("invalid %s value: %s", clause, token.Value)
		}
		return Literal(token.Value), nil
	case Placeholder:
		return parser.placeholder(), nil
	default:
		return Operand{}, fmt.Errorf("expected number after %s, got %s", clause, token)
	}
}

func ParseWhere(parser *Parser) (WhereClause, error) {
	var whereClause WhereClause

	for {
		negated := parser.accept(Not)

		left, err := parser.parseOperand()
		if err != nil {
			return whereClause, fmt.Errorf("in WHERE clause: %w", err)
		}

		condition := WhereCondition{Left: left, Negated: negated}

		token := parser.lexer.NextToken()
		switch token.Type {
		case Is:
			if parser.accept(Not) {
				condition.Operator = IsNotNullOperator
			} else {
				condition.Operator = IsNullOperator
			}
			if _, err := parser.expect(Null, "expected NULL after IS"); err != nil {
				return whereClause, err
			}
		case In, Not:
			if token.Type == Not {
				if _, err := parser.expect(In, "expected IN after NOT"); err != nil {
					return whereClause, err
				}
				condition.Negated = !condition.Negated
			}
			condition.Operator = InOperator
			if _, err := parser.expect(ParenOpen, "expected '(' after IN"); err != nil {
				return whereClause, err
			}
			for {
				value, err := parser.parseValue()
				if err != nil {
					return whereClause, fmt.Errorf("in IN list: %w", err)
				}
				condition.InValues = append(condition.InValues, value)

				token = parser.lexer.NextToken()
				if token.Type == ParenClose {
					break
				}
				if token.Type != Comma {
					return whereClause, errors.New("expected ',' or ')' in IN list")
				}
			}
		default:
			switch token.Type {
			case Equals:
				condition.Operator = EqualsOperator
			case NotEquals:
				condition.Operator = NotEqualsOperator
			case LessThan:
				condition.Operator = LessThanOperator
			case GreaterThan:
				condition.Operator = GreaterThanOperator
			case LessThanOrEqual:
				condition.Operator = LessThanOrEqualOperator
			case GreaterThanOrEqual:
				condition.Operator = GreaterThanOrEqualOperator
			case Like:
				condition.Operator = LikeOperator
			default:
				return whereClause, fmt.Errorf("expected operator in WHERE clause, got %s", token)
			}

			right, err := parser.parseOperand()
			if err != nil {
				return whereClause, fmt.Errorf("in WHERE clause: %w", err)
			}
			condition.Right = right
		}

		whereClause.Conditions = append(whereClause.Conditions, condition)

		if parser.accept(And) {
			whereClause.LogicalOps = append(whereClause.LogicalOps, LogicalAnd)
			continue
		}
		if parser.accept(Or) {
			whereClause.LogicalOps = append(whereClause.LogicalOps, LogicalOr)
			continue
		}
		break
	}

	return whereClause, nil
}

func ParseInsert(parser *Parser) (Statement, error) {
	var insertStatement InsertStatement

	if _, err := parser.expect(Into, "expected INTO after INSERT"); err != nil {
		return nil, err
	}

	database, table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	insertStatement.Database = database
	insertStatement.Table = table

	if _, err := parser.expect(ParenOpen, "expected '(' after table name"); err != nil {
		return nil, err
	}

	for {
		column, err := parser.parseName("column name")
		if err != nil {
			return nil, err
		}
		insertStatement.Columns = append(insertStatement.Columns, column)

		token := parser.lexer.NextToken()
		if token.Type == ParenClose {
			break
		}
		if token.Type != Comma {
			return nil, errors.New("expected ',' or ')' in column list")
		}
	}

	if _, err := parser.expect(Values, "expected VALUES"); err != nil {
		return nil, err
	}

	for {
		if _, err := parser.expect(ParenOpen, "expected '(' after VALUES"); err != nil {
			return nil, err
		}

		var row []Operand
		for {
			value, err := parser.parseValue()
			if err != nil {
				return nil, err
			}
			row = append(row, value)

			token := parser.lexer.NextToken()
			if token.Type == ParenClose {
				break
			}
			if token.Type != Comma {
				return nil, errors.New("expected ',' or ')' in values list")
			}
		}

		if len(row) != len(insertStatement.Columns) {
			return nil, fmt.Errorf("expected %d values, got %d", len(insertStatement.Columns), len(row))
		}
		insertStatement.Rows = append(insertStatement.Rows, row)

		if !parser.accept(Comma) {
			break
		}
	}

	return insertStatement, nil
}

func ParseUpdate(parser *Parser) (Statement, error) {
	var updateStatement UpdateStatement

	database, table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	updateStatement.Database = database
	updateStatement.Table = table

	if _, err := parser.expect(Set, "expected SET after table name"); err != nil {
		return nil, err
	}

	for {
		token, err := parser.expect(Identifier, "expected column name in SET clause")
		if err != nil {
			return nil, err
		}
		column, err := parser.parseColumnRef(token)
		if err != nil {
			return nil, err
		}

		if _, err := parser.expect(Equals, "expected '=' in SET clause"); err != nil {
			return nil, err
		}

		value, err := parser.parseValue()
		if err != nil {
			return nil, fmt.Errorf("in SET clause: %w", err)
		}

		updateStatement.Updates = append(updateStatement.Updates, SetClause{
			Column: column,
			Value:  value,
		})

		if !parser.accept(Comma) {
			break
		}
	}

	if parser.accept(Where) {
		whereClause, err := ParseWhere(parser)
		if err != nil {
			return nil, err
		}
		updateStatement.Where = whereClause
	}

	return updateStatement, nil
}

func ParseDelete(parser *Parser) (Statement, error) {
	var deleteStatement DeleteStatement

	if _, err := parser.expect(From, "expected FROM after DELETE"); err != nil {
		return nil, err
	}

	database, table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	deleteStatement.Database = database
	deleteStatement.Table = table

	if parser.accept(Where) {
		whereClause, err := ParseWhere(parser)
		if err != nil {
			return nil, err
		}
		deleteStatement.Where = whereClause
	}

	return deleteStatement, nil
}

func ParseCreate(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case TableIdentifier:
		return ParseCreateTable(parser)
	case DatabaseIdentifier:
		return ParseCreateDatabase(parser)
	default:
		return nil, errors.New("expected TABLE or DATABASE after CREATE")
	}
}

func (parser *Parser) parseIfNotExists() (bool, error) {
	if !parser.accept(If) {
		return false, nil
	}
	if _, err := parser.expect(Not, "expected NOT after IF"); err != nil {
		return false, err
	}
	if _, err := parser.expect(Exists, "expected EXISTS after IF NOT"); err != nil {
		return false, err
	}
	return true, nil
}

func (parser *Parser) parseIfExists() (bool, error) {
	if !parser.accept(If) {
		return false, nil
	}
	if _, err := parser.expect(Exists, "expected EXISTS after IF"); err != nil {
		return false, err
	}
	return true, nil
}

func ParseCreateTable(parser *Parser) (Statement, error) {
	var createTableStatement CreateTableStatement

	ifNotExists, err := parser.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	createTableStatement.IfNotExists = ifNotExists

	database, table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	createTableStatement.Database = database
	createTableStatement.Table = table

	if _, err := parser.expect(ParenOpen, "expected '(' after table name"); err != nil {
		return nil, err
	}

	for {
		columnName, err := parser.parseName("column name")
		if err != nil {
			return nil, err
		}

		token := parser.lexer.NextToken()
		if token.Type != Identifier || token.Quoted {
			return nil, fmt.Errorf("expected column type for %s, got %s", columnName, token)
		}
		columnType, ok := core.ParseColumnType(token.Value)
		if !ok {
			return nil, fmt.Errorf("unknown column type %s for %s", token.Value, columnName)
		}

		// VARCHAR(255) and friends: the size is accepted and ignored
		if parser.accept(ParenOpen) {
			if _, err := parser.expect(Int, "expected size in column type"); err != nil {
				return nil, err
			}
			if _, err := parser.expect(ParenClose, "expected ')' after column size"); err != nil {
				return nil, err
			}
		}

		column := core.Column{Name: columnName, Type: columnType}
		for {
			if parser.accept(Primary) {
				if _, err := parser.expect(Key, "expected KEY after PRIMARY"); err != nil {
					return nil, err
				}
				column.PrimaryKey = true
				continue
			}
			if parser.accept(Not) {
				if _, err := parser.expect(Null, "expected NULL after NOT"); err != nil {
					return nil, err
				}
				continue
			}
			if parser.accept(Null) {
				continue
			}
			break
		}

		createTableStatement.Columns = append(createTableStatement.Columns, column)

		token = parser.lexer.NextToken()
		if token.Type == ParenClose {
			break
		}
		if token.Type != Comma {
			return nil, errors.New("expected ',' or ')' in column list")
		}
	}

	keys := 0
	for _, column := range createTableStatement.Columns {
		if column.PrimaryKey {
			keys++
		}
	}
	if keys > 1 {
		return nil, errors.New("composite primary keys are not supported")
	}

	return createTableStatement, nil
}

func ParseCreateDatabase(parser *Parser) (Statement, error) {
	ifNotExists, err := parser.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	name, err := parser.parseName("database name")
	if err != nil {
		return nil, err
	}
	return CreateDatabaseStatement{Database: name, IfNotExists: ifNotExists}, nil
}

func ParseDrop(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case TableIdentifier:
		ifExists, err := parser.parseIfExists()
		if err != nil {
			return nil, err
		}
		database, table, err := parser.parseTableName()
		if err != nil {
			return nil, err
		}
		return DropTableStatement{Database: database, Table: table, IfExists: ifExists}, nil
	case DatabaseIdentifier:
		ifExists, err := parser.parseIfExists()
		if err != nil {
			return nil, err
		}
		name, err := parser.parseName("database name")
		if err != nil {
			return nil, err
		}
		return DropDatabaseStatement{Database: name, IfExists: ifExists}, nil
	default:
		return nil, errors.New("expected TABLE or DATABASE after DROP")
	}
}

func ParseShow(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case DatabasesIdentifier:
		return ShowDatabasesStatement{}, nil
	case TablesIdentifier:
		if !parser.accept(In) && !parser.accept(From) {
			return ShowTablesStatement{}, nil
		}
		name, err := parser.parseName("database name after IN")
		if err != nil {
			return nil, err
		}
		return ShowTablesStatement{Database: name}, nil
	default:
		return nil, errors.New("expected DATABASES or TABLES after SHOW")
	}
}

// ParseDescribe parses DESCRIBE table statements
func ParseDescribe(parser *Parser) (Statement, error) {
	database, table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	return DescribeStatement{Database: database, Table: table}, nil
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
