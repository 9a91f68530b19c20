package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLossReason(t *testing.T) {
	fk := ForeignKeyConstraint{Table: "posts", Column: "user_id", IndexName: "IDX_POSTS_USER"}

	tests := []struct {
		name string
		idx  IndexSpec
		lost bool
	}{
		{"supporting index is rebuilt", IndexSpec{Name: "IDX_POSTS_USER", Columns: []string{"user_id"}}, false},
		{"unrelated index", IndexSpec{Name: "idx_slug", Columns: []string{"slug"}}, false},
		{"other single column index", IndexSpec{Name: "posts_user_id_idx", Columns: []string{"user_id"}}, true},
		{"composite unique", IndexSpec{Name: "uniq_user_slug", Columns: []string{"user_id", "slug"}, Unique: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, lost := indexLossReason(tt.idx, fk)
			assert.Equal(t, tt.lost, lost)
		})
	}
}

func TestCollectIndexLossWarnings(t *testing.T) {
	cat := usersPostsCatalog()
	posts := cat.table("posts")
	posts.idxs = append(posts.idxs, IndexSpec{Name: "uniq_user_slug", Columns: []string{"user_id", "slug"}, Unique: true})

	plan, err := buildPlan(context.Background(), cat, pgTestDialect(t), "users", "", "")
	require.NoError(t, err)
	require.Len(t, plan.Warnings, 1)
	w := plan.Warnings[0]
	for _, want := range []string{"posts.uniq_user_slug", "unique index on (user_id, slug)", "not recreated"} {
		assert.Contains(t, w, want)
	}
}
