package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nickyhof/storeadapter/adapter"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

const historyLimit = 1000

var errQuit = errors.New("quit")

var (
	queryPattern  = regexp.MustCompile(`(?i)^\s*(SELECT|SHOW|DESCRIBE)\b`)
	insertPattern = regexp.MustCompile(`(?i)^\s*INSERT\b`)
	deletePattern = regexp.MustCompile(`(?i)^\s*DELETE\b`)
)

// CLI drives an adapter from statements read line by line.
type CLI struct {
	adapter     *adapter.Adapter
	out         io.Writer
	history     []string
	historyFile string
}

func NewCLI(a *adapter.Adapter, out io.Writer) *CLI {
	return &CLI{adapter: a, out: out}
}

func (cli *CLI) printf(color, format string, args ...any) {
	fmt.Fprintf(cli.out, color+format+ResetColor+"\n", args...)
}

func (cli *CLI) printBanner() {
	fmt.Fprintf(cli.out, "%s%sstoreadapter %s%s\n", BoldColor, PromptColor, Version, ResetColor)
	config := cli.adapter.Config()
	fmt.Fprintf(cli.out, "Connected to %s as app %s\n", config.URL, config.App)
	fmt.Fprintln(cli.out, "Type .help for commands, .quit to exit")
	fmt.Fprintln(cli.out)
}

// Run reads statements until in is exhausted or .quit. Statements may span
// lines and end with a semicolon.
func (cli *CLI) Run(in io.Reader, interactive bool) {
	reader := bufio.NewReader(in)
	var buffer strings.Builder

	for {
		if interactive {
			if buffer.Len() > 0 {
				fmt.Fprintf(cli.out, "%s   ...>%s ", PromptColor, ResetColor)
			} else {
				fmt.Fprintf(cli.out, "%s%s>%s ", PromptColor, cli.adapter.Config().App, ResetColor)
			}
		}

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			if interactive {
				cli.printf(SuccessColor, "\nGoodbye!")
			}
			return
		}
		input = strings.TrimRight(input, "\r\n")

		if strings.TrimSpace(input) == "" {
			continue
		}

		if buffer.Len() == 0 && strings.HasPrefix(strings.TrimSpace(input), ".") {
			if errors.Is(cli.handleCommand(input), errQuit) {
				cli.printf(SuccessColor, "Goodbye!")
				return
			}
			continue
		}

		buffer.WriteString(input)
		trimmed := strings.TrimSpace(buffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			buffer.WriteString(" ")
			continue
		}
		buffer.Reset()

		statement := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
		if statement == "" {
			continue
		}
		cli.addToHistory(statement + ";")

		if err := cli.Execute(statement); err != nil {
			cli.printf(ErrorColor, "✗ Error: %v", err)
		}
	}
}

// Execute runs one statement and prints its outcome.
func (cli *CLI) Execute(statement string) error {
	switch {
	case queryPattern.MatchString(statement):
		result, err := cli.adapter.ExecQuery(statement, nil)
		if err != nil {
			return err
		}
		cli.display(result)

	case insertPattern.MatchString(statement):
		affected, err := cli.adapter.ExecMutate(statement, nil)
		if err != nil {
			return err
		}
		if id, err := cli.adapter.LastInsertedID(); err == nil {
			cli.printf(SuccessColor, "✓ %d row(s) inserted, last id %v", affected, id)
		} else {
			cli.printf(SuccessColor, "✓ %d row(s) inserted", affected)
		}

	case deletePattern.MatchString(statement):
		affected, err := cli.adapter.ExecDelete(statement, nil)
		if err != nil {
			return err
		}
		cli.printf(SuccessColor, "✓ %d row(s) deleted", affected)

	default:
		affected, err := cli.adapter.ExecMutate(statement, nil)
		if err != nil {
			return err
		}
		cli.printf(SuccessColor, "✓ OK, %d row(s) affected", affected)
	}
	return nil
}

func (cli *CLI) display(result *adapter.Result) {
	table := NewTable(cli.out)
	table.Header(result.Columns())
	for _, row := range result.Rows() {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		table.Row(cells)
	}
	table.Render()
	fmt.Fprintf(cli.out, "%d row(s)\n", result.Len())
}

func (cli *CLI) handleCommand(input string) error {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return nil
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		cli.saveHistory()
		return errQuit

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		tables, err := cli.adapter.Tables()
		if err != nil {
			cli.printf(ErrorColor, "✗ Error: %v", err)
			return nil
		}
		table := NewTable(cli.out)
		table.Header([]string{"name"})
		for _, name := range tables {
			table.Row([]string{name})
		}
		table.Render()

	case ".describe", ".schema":
		if len(parts) < 2 {
			cli.printf(ErrorColor, "✗ Usage: .describe <table>")
			return nil
		}
		columns, err := cli.adapter.Columns(parts[1])
		if err != nil {
			cli.printf(ErrorColor, "✗ Error: %v", err)
			return nil
		}
		table := NewTable(cli.out)
		table.Header([]string{"name", "native", "type", "key"})
		for _, column := range columns {
			key := ""
			if column.PrimaryKey {
				key = "PK"
			}
			table.Row([]string{column.Name, column.NativeType, string(column.Type), key})
		}
		table.Render()

	case ".reconnect":
		if err := cli.adapter.Reconnect(); err != nil {
			cli.printf(ErrorColor, "✗ Error: %v", err)
			return nil
		}
		cli.printf(SuccessColor, "✓ Reconnected")

	case ".status":
		state := "disconnected"
		if cli.adapter.Active() {
			state = "active"
		}
		fmt.Fprintf(cli.out, "session %s, %d cached statement(s)\n", state, cli.adapter.Pool().Len())

	case ".clearcache":
		cli.adapter.ClearCache()
		cli.printf(SuccessColor, "✓ Statement cache cleared")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Fprintf(cli.out, "storeadapter version %s\n", Version)

	case ".import":
		if len(parts) < 2 {
			cli.printf(ErrorColor, "✗ Usage: .import <file.sql>")
			return nil
		}
		if err := cli.ImportFile(parts[1]); err != nil {
			cli.printf(ErrorColor, "✗ Error: %v", err)
		}

	default:
		cli.printf(ErrorColor, "✗ Unknown command: %s (type .help for commands)", parts[0])
	}
	return nil
}

func (cli *CLI) printHelp() {
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out, "  .help, .h          Show this help message")
	fmt.Fprintln(cli.out, "  .quit, .exit       Exit the CLI")
	fmt.Fprintln(cli.out, "  .tables            List tables visible to the app")
	fmt.Fprintln(cli.out, "  .describe <table>  Show the columns of a table")
	fmt.Fprintln(cli.out, "  .import <file>     Execute SQL statements from a file")
	fmt.Fprintln(cli.out, "  .status            Show session and cache state")
	fmt.Fprintln(cli.out, "  .clearcache        Drop cached prepared statements")
	fmt.Fprintln(cli.out, "  .reconnect         Open a new session")
	fmt.Fprintln(cli.out, "  .history           Show command history")
	fmt.Fprintln(cli.out, "  .version           Show version info")
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sSQL Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out, "  CREATE TABLE <table> (<column> <type>, ...);")
	fmt.Fprintln(cli.out, "  DROP TABLE <table>;")
	fmt.Fprintln(cli.out, "  INSERT INTO <table> (<cols>) VALUES (<vals>);")
	fmt.Fprintln(cli.out, "  SELECT <cols> FROM <table> [WHERE ...] [ORDER BY ...] [LIMIT n];")
	fmt.Fprintln(cli.out, "  UPDATE <table> SET <col>=<val> WHERE ...;")
	fmt.Fprintln(cli.out, "  DELETE FROM <table> [WHERE ...];")
	fmt.Fprintln(cli.out, "  DESCRIBE <table>; SHOW TABLES;")
	fmt.Fprintln(cli.out, "  BEGIN; COMMIT; ROLLBACK;")
	fmt.Fprintln(cli.out)
}

func (cli *CLI) addToHistory(statement string) {
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == statement {
		return
	}
	cli.history = append(cli.history, statement)
	if len(cli.history) > historyLimit {
		cli.history = cli.history[len(cli.history)-historyLimit:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Fprintln(cli.out, "No command history")
		return
	}
	start := max(0, len(cli.history)-20)
	for i := start; i < len(cli.history); i++ {
		fmt.Fprintf(cli.out, "  %3d  %s\n", i+1, cli.history[i])
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".storeadapter_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := max(0, len(cli.history)-historyLimit)
	for _, line := range cli.history[start:] {
		_, _ = file.WriteString(line + "\n")
	}
}

// ImportFile executes the statements of a SQL file, continuing past
// failures.
func (cli *CLI) ImportFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	succeeded, failed := 0, 0
	for i, statement := range splitStatements(string(data)) {
		if err := cli.Execute(statement); err != nil {
			cli.printf(ErrorColor, "[%d] ✗ %s", i+1, truncate(statement, 50))
			fmt.Fprintf(cli.out, "      Error: %v\n", err)
			failed++
			continue
		}
		succeeded++
	}

	cli.printf(SuccessColor, "\n✓ Import complete: %d succeeded, %d failed", succeeded, failed)
	if failed > 0 {
		return fmt.Errorf("%d statement(s) failed", failed)
	}
	return nil
}

// splitStatements splits SQL text on semicolons outside quotes and drops
// -- comments.
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	var quote byte

	for i := 0; i < len(content); i++ {
		ch := content[i]

		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '-' && i+1 < len(content) && content[i+1] == '-':
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		case ch == ';':
			if statement := strings.TrimSpace(current.String()); statement != "" {
				statements = append(statements, statement)
			}
			current.Reset()
			continue
		}
		current.WriteByte(ch)
	}

	if statement := strings.TrimSpace(current.String()); statement != "" {
		statements = append(statements, statement)
	}
	return statements
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
