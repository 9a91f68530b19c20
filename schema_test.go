package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPgIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"user", `"user"`},
		{"order", `"order"`},
		{"table", `"table"`},
		{"users", "users"},
		{"match_id", "match_id"},
		{"chat_id-ended_at", `"chat_id-ended_at"`},
		{"has space", `"has space"`},
		{"Upper", `"Upper"`},
		{"0start", `"0start"`},
		{`say"hi`, `"say""hi"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pgIdent(tt.in), tt.in)
	}
}

func TestMySQLIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"users", "`users`"},
		{"my`table", "`my``table`"},
		{"order", "`order`"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mysqlIdent(tt.in), tt.in)
	}
}

func TestQuotedColumnList(t *testing.T) {
	assert.Equal(t, `post_id, "user", tag_id`, quotedColumnList(pgIdent, []string{"post_id", "user", "tag_id"}))
}
