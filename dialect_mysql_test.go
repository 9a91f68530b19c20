package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // registers the parser's value expression driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireMySQLDDL parses stmt with the TiDB MySQL grammar.
func requireMySQLDDL(t *testing.T, stmt string) ast.StmtNode {
	t.Helper()
	nodes, _, err := parser.New().Parse(stmt, "", "")
	require.NoError(t, err, stmt)
	require.Len(t, nodes, 1, stmt)
	return nodes[0]
}

func TestMySQLDialect_StatementsParse(t *testing.T) {
	for _, doctrine := range []bool{false, true} {
		t.Run(fmt.Sprintf("doctrine=%t", doctrine), func(t *testing.T) {
			d := &mysqlDialect{doctrineComments: doctrine}
			fk := ForeignKeyConstraint{
				Table: "posts", Column: "user_id", Name: "FK_885DBAFAA76ED395",
				DeleteAction: "CASCADE", UpdateAction: "SET NULL",
			}
			pk := &PrimaryKeySpec{Columns: []string{"user_id", "group_id"}}

			var stmts []string
			stmts = append(stmts, d.AddUUIDColumn("users", "__uuid__", true)...)
			stmts = append(stmts, d.AddUUIDColumn("posts", "user_id_to_uuid", false)...)
			stmts = append(stmts, d.RenameUUIDColumn("posts", "user_id_to_uuid", "user_id", true)...)
			stmts = append(stmts, d.RenameUUIDColumn("users", "__uuid__", "id", false)...)
			stmts = append(stmts, d.DropIdentifier("users", pk, "id")...)
			stmts = append(stmts, d.DropIdentifier("users", nil, "id")...)
			stmts = append(stmts,
				d.DropPrimaryKey("user_groups", *pk),
				d.AddPrimaryKey("user_groups", *pk),
				d.DropForeignKey("posts", fk.Name),
				d.DropColumn("posts", "user_id"),
				d.AddForeignKey(fk, "users", "id"),
				d.CreateIndex("IDX_885DBAFAA76ED395", "posts", "user_id"),
			)
			for _, s := range stmts {
				requireMySQLDDL(t, s)
			}
		})
	}
}

func TestMySQLDialect_AddUUIDColumn(t *testing.T) {
	d := &mysqlDialect{}
	assert.Equal(t, []string{"ALTER TABLE `users` ADD `__uuid__` CHAR(36) DEFAULT NULL FIRST"}, d.AddUUIDColumn("users", "__uuid__", true))

	node := requireMySQLDDL(t, d.AddUUIDColumn("posts", "user_id_to_uuid", false)[0])
	alter, ok := node.(*ast.AlterTableStmt)
	require.True(t, ok)
	assert.Equal(t, "posts", alter.Table.Name.O)
	require.Len(t, alter.Specs, 1)
	assert.Equal(t, ast.AlterTableAddColumns, alter.Specs[0].Tp)
}

func TestMySQLDialect_DoctrineComment(t *testing.T) {
	d := &mysqlDialect{doctrineComments: true}
	assert.Equal(t,
		[]string{"ALTER TABLE `posts` CHANGE `user_id_to_uuid` `user_id` CHAR(36) NOT NULL COMMENT '(DC2Type:guid)'"},
		d.RenameUUIDColumn("posts", "user_id_to_uuid", "user_id", false))
}

func TestMySQLDialect_ReferentialActionsOmitNoAction(t *testing.T) {
	d := &mysqlDialect{}
	fk := ForeignKeyConstraint{Table: "posts", Column: "user_id", Name: "fk", DeleteAction: "NO ACTION", UpdateAction: "no action"}
	assert.Equal(t, "ALTER TABLE `posts` ADD CONSTRAINT `fk` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`)", d.AddForeignKey(fk, "users", "id"))
}

func TestMySQLDialect_IsUUIDColumn(t *testing.T) {
	d := &mysqlDialect{}
	assert.True(t, d.IsUUIDColumn(ColumnSpec{ColumnType: "char(36)"}))
	assert.True(t, d.IsUUIDColumn(ColumnSpec{ColumnType: "BINARY(16)"}))
	assert.False(t, d.IsUUIDColumn(ColumnSpec{ColumnType: "int unsigned"}))
	assert.False(t, d.IsUUIDColumn(ColumnSpec{ColumnType: "char(32)"}))
}

func TestMySQLDialect_IsIntegerColumn(t *testing.T) {
	d := &mysqlDialect{}
	assert.True(t, d.IsIntegerColumn(ColumnSpec{DataType: "int", ColumnType: "int"}))
	assert.True(t, d.IsIntegerColumn(ColumnSpec{DataType: "bigint", ColumnType: "bigint(20) unsigned"}))
	assert.True(t, d.IsIntegerColumn(ColumnSpec{ColumnType: "mediumint(8) unsigned"}))
	assert.False(t, d.IsIntegerColumn(ColumnSpec{DataType: "varchar", ColumnType: "varchar(32)"}))
	assert.False(t, d.IsIntegerColumn(ColumnSpec{DataType: "decimal", ColumnType: "decimal(10,0)"}))
}

func TestMySQLDialect_ErrorClassification(t *testing.T) {
	d := &mysqlDialect{}
	wrapped := fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1091})

	assert.True(t, d.IsAlreadyDropped(wrapped))
	assert.False(t, d.IsAlreadyExists(wrapped))
	assert.True(t, d.IsAlreadyExists(&mysql.MySQLError{Number: 1068}))
	assert.True(t, d.IsAlreadyExists(&mysql.MySQLError{Number: 1061}))
	assert.False(t, d.IsAlreadyDropped(errors.New("1091")))
	assert.False(t, d.IsAlreadyDropped(nil))
}
