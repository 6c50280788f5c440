package adapter

import (
	"fmt"
)

// Tables lists the tables visible through the perspective.
func (a *Adapter) Tables() ([]string, error) {
	rows, err := a.introspect("SHOW TABLES")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			names = append(names, fmt.Sprint(row[0]))
		}
	}
	return names, nil
}

// Columns describes the columns of table in declaration order.
func (a *Adapter) Columns(table string) ([]ColumnDescriptor, error) {
	rows, err := a.introspect("DESCRIBE " + QuoteIdentifier(table))
	if err != nil {
		return nil, err
	}

	columns := make([]ColumnDescriptor, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		native := fmt.Sprint(row[1])
		column := ColumnDescriptor{
			Name:       fmt.Sprint(row[0]),
			NativeType: native,
			Type:       LogicalTypeOf(native),
		}
		if len(row) > 2 {
			column.PrimaryKey = fmt.Sprint(row[2]) == "YES"
		}
		columns = append(columns, column)
	}
	return columns, nil
}

// PrimaryKey names the key column of table. Keys are always "id".
func (a *Adapter) PrimaryKey(table string) string {
	return "id"
}

// introspect runs sql through a throwaway statement that is closed with
// its result before returning. The current result is left alone.
func (a *Adapter) introspect(sql string) ([][]any, error) {
	if a.perspective == nil {
		return nil, &ConnectionError{URL: a.config.URL, Err: ErrNotConnected}
	}

	statement, err := a.perspective.Prepare(sql)
	if err != nil {
		return nil, &StatementError{SQL: sql, Phase: PhasePrepared, Err: err}
	}
	defer dispose(statement, a.logger)

	result, err := statement.Execute(nil)
	if err != nil {
		return nil, err
	}
	defer dispose(result, a.logger)

	return result.Rows()
}
