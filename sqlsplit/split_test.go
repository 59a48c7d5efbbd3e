package sqlsplit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.hackfix.me/sqlmgr/sqlsplit"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sql      string
		expStmts []string
	}{
		{
			name:     "ok/empty",
			sql:      "",
			expStmts: nil,
		},
		{
			name:     "ok/whitespace_only",
			sql:      " \n\t ;; \n",
			expStmts: nil,
		},
		{
			name:     "ok/single_no_delimiter",
			sql:      "SELECT 1",
			expStmts: []string{"SELECT 1"},
		},
		{
			name:     "ok/multiple",
			sql:      "CREATE TABLE t(x INT);\nINSERT INTO t VALUES(1);\n",
			expStmts: []string{"CREATE TABLE t(x INT)", "INSERT INTO t VALUES(1)"},
		},
		{
			name:     "ok/crlf",
			sql:      "SELECT 1;\r\nSELECT 2;\r\n",
			expStmts: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:     "ok/semicolon_in_single_quotes",
			sql:      "SELECT ';'; -- comment; more",
			expStmts: []string{"SELECT ';'"},
		},
		{
			name:     "ok/semicolon_in_double_quotes",
			sql:      `SELECT "a;b"; SELECT 2;`,
			expStmts: []string{`SELECT "a;b"`, "SELECT 2"},
		},
		{
			name:     "ok/semicolon_in_backticks",
			sql:      "SELECT `we;ird` FROM t;",
			expStmts: []string{"SELECT `we;ird` FROM t"},
		},
		{
			name:     "ok/escaped_quote",
			sql:      `INSERT INTO t VALUES('it\'s; fine'); SELECT 1;`,
			expStmts: []string{`INSERT INTO t VALUES('it\'s; fine')`, "SELECT 1"},
		},
		{
			name:     "ok/escaped_backslash",
			sql:      `SELECT '\\'; SELECT 2;`,
			expStmts: []string{`SELECT '\\'`, "SELECT 2"},
		},
		{
			name:     "ok/doubled_quote",
			sql:      "SELECT 'it''s;'; SELECT 2;",
			expStmts: []string{"SELECT 'it''s;'", "SELECT 2"},
		},
		{
			name:     "ok/hash_comment",
			sql:      "SELECT 1; # drop; everything\nSELECT 2;",
			expStmts: []string{"SELECT 1", "# drop; everything\nSELECT 2"},
		},
		{
			name:     "ok/block_comment",
			sql:      "SELECT /* a; b */ 1; /* trailing; */",
			expStmts: []string{"SELECT /* a; b */ 1"},
		},
		{
			name:     "ok/multiline_block_comment",
			sql:      "/*\n DELIMITER $$\n;*/\nSELECT 1;",
			expStmts: []string{"/*\n DELIMITER $$\n;*/\nSELECT 1"},
		},
		{
			name: "ok/custom_delimiter",
			sql: "DELIMITER $$\n" +
				"CREATE PROCEDURE p() BEGIN SELECT 1; SELECT 2; END$$\n" +
				"DELIMITER ;\n" +
				"SELECT 1;",
			expStmts: []string{
				"CREATE PROCEDURE p() BEGIN SELECT 1; SELECT 2; END",
				"SELECT 1",
			},
		},
		{
			name: "ok/custom_delimiter_lowercase_indented",
			sql: "  delimiter //\n" +
				"CREATE TRIGGER tr BEFORE INSERT ON t FOR EACH ROW BEGIN SET NEW.x = 1; END//\n" +
				"delimiter ;\n",
			expStmts: []string{
				"CREATE TRIGGER tr BEFORE INSERT ON t FOR EACH ROW BEGIN SET NEW.x = 1; END",
			},
		},
		{
			name:     "ok/delimiter_word_inside_literal",
			sql:      "SELECT '\nDELIMITER $$\n'; SELECT 2;",
			expStmts: []string{"SELECT '\nDELIMITER $$\n'", "SELECT 2"},
		},
		{
			name:     "ok/delimiter_not_at_line_start",
			sql:      "SELECT 1; DELIMITER $$",
			expStmts: []string{"SELECT 1", "DELIMITER $$"},
		},
		{
			name: "ok/delimiter_column_name",
			sql: "CREATE TABLE csv_settings (\n" +
				"  id INT,\n" +
				"  delimiter CHAR(1) NOT NULL\n" +
				");\n" +
				"INSERT INTO csv_settings VALUES (1, ',');\n",
			expStmts: []string{
				"CREATE TABLE csv_settings (\n  id INT,\n  delimiter CHAR(1) NOT NULL\n)",
				"INSERT INTO csv_settings VALUES (1, ',')",
			},
		},
		{
			name: "ok/delimiter_after_comment_between_statements",
			sql: "SELECT 1;\n-- switch\nDELIMITER $$\nSELECT 2; SELECT 3$$\n",
			expStmts: []string{
				"SELECT 1",
				"-- switch\nSELECT 2; SELECT 3",
			},
		},
		{
			name:     "ok/unterminated_literal_flushed",
			sql:      "SELECT 1; SELECT 'oops;",
			expStmts: []string{"SELECT 1", "SELECT 'oops;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expStmts, sqlsplit.Split(tt.sql))
		})
	}
}

func TestScanUnterminated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sql     string
		expKind string
		expLen  int
	}{
		{name: "ok/complete", sql: "SELECT 1;", expKind: "", expLen: 1},
		{name: "ok/line_comment_at_eof", sql: "SELECT 1; -- bye", expKind: "", expLen: 1},
		{name: "err/quoted", sql: "SELECT 'x", expKind: "quoted literal", expLen: 1},
		{name: "err/block_comment", sql: "SELECT 1; /* never closed", expKind: "block comment", expLen: 1},
		{name: "err/block_comment_after_code", sql: "SELECT 1 /* never closed", expKind: "block comment", expLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := sqlsplit.Scan(tt.sql)
			assert.Equal(t, tt.expKind, res.Unterminated)
			assert.Len(t, res.Statements, tt.expLen)
		})
	}
}

func TestSplitRejoin(t *testing.T) {
	t.Parallel()

	scripts := []string{
		"CREATE TABLE a(x INT);\nINSERT INTO a VALUES(1);\nINSERT INTO a VALUES(2);",
		"SELECT ';' AS s; SELECT \"--\" AS d; SELECT 3",
		"UPDATE t SET v = 'a\\'b;c' WHERE id = 1; DELETE FROM t WHERE v = '#';",
	}

	for _, script := range scripts {
		stmts := sqlsplit.Split(script)
		rejoined := strings.Join(stmts, sqlsplit.DefaultDelimiter+"\n")
		assert.Equal(t, stmts, sqlsplit.Split(rejoined), "script: %q", script)
	}
}
