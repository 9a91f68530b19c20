package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlan_UsersPosts(t *testing.T) {
	plan, err := buildPlan(context.Background(), usersPostsCatalog(), pgTestDialect(t), "users", "", "")
	require.NoError(t, err)

	assert.Equal(t, "users", plan.Table)
	assert.Equal(t, "id", plan.IDColumn)
	assert.Equal(t, "__uuid__", plan.UUIDColumn)
	require.NotNil(t, plan.PrimaryKey)
	assert.Equal(t, "public.users_id_seq", plan.PrimaryKey.Sequence)
	assert.Empty(t, plan.Warnings)

	require.Len(t, plan.ForeignKeys, 1)
	fk := plan.ForeignKeys[0]
	assert.Equal(t, "posts", fk.Table)
	assert.Equal(t, "user_id", fk.Column)
	assert.Equal(t, "user_id_to_uuid", fk.TempColumn)
	assert.True(t, fk.Nullable)
	assert.Equal(t, "CASCADE", fk.DeleteAction)
	assert.Equal(t, "", fk.UpdateAction)
	assert.Equal(t, "idx_posts_user", fk.IndexName)
	assert.False(t, fk.InPrimaryKey)
	require.NotNil(t, fk.PrimaryKey)
	assert.Equal(t, []string{"id"}, fk.PrimaryKey.Columns)
}

func TestBuildPlan_CustomColumns(t *testing.T) {
	cat := &fakeCatalog{tables: []*fakeTable{{
		name: "accounts",
		cols: []ColumnSpec{intCol("account_id", false)},
		pk:   &PrimaryKeySpec{Name: "accounts_pkey", Columns: []string{"account_id"}},
	}}}

	plan, err := buildPlan(context.Background(), cat, pgTestDialect(t), "accounts", "account_id", "tmp_uuid")
	require.NoError(t, err)
	assert.Equal(t, "account_id", plan.IDColumn)
	assert.Equal(t, "tmp_uuid", plan.UUIDColumn)
	assert.Equal(t, PrimaryKeySpec{Name: "accounts_pkey", Columns: []string{"account_id"}}, plan.RestoredPrimaryKey())
}

func TestBuildPlan_MissingIDColumn(t *testing.T) {
	cat := &fakeCatalog{tables: []*fakeTable{{name: "t", cols: []ColumnSpec{intCol("key", false)}}}}

	_, err := buildPlan(context.Background(), cat, pgTestDialect(t), "t", "", "")
	var lookup *LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "unable to find id in t", lookup.Error())
}

func TestBuildPlan_AlreadyMigratedMySQL(t *testing.T) {
	cat := &fakeCatalog{tables: []*fakeTable{{
		name: "users",
		cols: []ColumnSpec{{Name: "id", DataType: "char", ColumnType: "char(36)"}},
	}}}

	_, err := buildPlan(context.Background(), cat, mysqlTestDialect(t), "users", "", "")
	var already *AlreadyMigratedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "field users.id is already UUID (char(36))", already.Error())
}

func TestBuildPlan_LeftoverTemporaryColumns(t *testing.T) {
	cat := usersPostsCatalog()
	users := cat.table("users")
	users.cols = append(users.cols, ColumnSpec{Name: "__uuid__", DataType: "uuid"})

	_, err := buildPlan(context.Background(), cat, pgTestDialect(t), "users", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users.__uuid__ already exists")

	cat = usersPostsCatalog()
	posts := cat.table("posts")
	posts.cols = append(posts.cols, ColumnSpec{Name: "user_id_to_uuid", DataType: "uuid", Nullable: true})

	_, err = buildPlan(context.Background(), cat, pgTestDialect(t), "users", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "posts.user_id_to_uuid already exists")
}

func TestBuildPlan_CompositeForeignKeyRejected(t *testing.T) {
	cat := usersPostsCatalog()
	cat.tables = append(cat.tables, &fakeTable{
		name: "pairs",
		cols: []ColumnSpec{intCol("a", false), intCol("b", false)},
		fks: []ForeignKeySpec{{
			Name: "pairs_fkey", Columns: []string{"a", "b"},
			RefTable: "users", RefColumns: []string{"id", "name"},
		}},
	})

	_, err := buildPlan(context.Background(), cat, pgTestDialect(t), "users", "", "")
	var unsupported *UnsupportedConfigurationError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Reason, "pairs_fkey")
}

func TestBuildPlan_ForeignKeyToOtherColumnIsWarned(t *testing.T) {
	cat := usersPostsCatalog()
	cat.tables = append(cat.tables, &fakeTable{
		name: "profiles",
		cols: []ColumnSpec{intCol("id", false), {Name: "user_name", DataType: "text"}},
		fks: []ForeignKeySpec{{
			Name: "profiles_user_name_fkey", Columns: []string{"user_name"},
			RefTable: "users", RefColumns: []string{"name"},
		}},
	})

	plan, err := buildPlan(context.Background(), cat, pgTestDialect(t), "users", "", "")
	require.NoError(t, err)
	require.Len(t, plan.ForeignKeys, 1)
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "profiles.user_name references users.name")
}

func TestBuildPlan_SelfReference(t *testing.T) {
	cat := &fakeCatalog{tables: []*fakeTable{{
		name: "categories",
		cols: []ColumnSpec{intCol("id", false), intCol("parent_id", true)},
		pk:   &PrimaryKeySpec{Name: "categories_pkey", Columns: []string{"id"}},
		fks: []ForeignKeySpec{{
			Name: "categories_parent_id_fkey", Columns: []string{"parent_id"},
			RefTable: "categories", RefColumns: []string{"id"}, DeleteAction: "SET NULL",
		}},
	}}}

	plan, err := buildPlan(context.Background(), cat, pgTestDialect(t), "categories", "", "")
	require.NoError(t, err)
	require.Len(t, plan.ForeignKeys, 1)
	fk := plan.ForeignKeys[0]
	assert.Equal(t, "categories", fk.Table)
	assert.Equal(t, "categories_parent_id_idx", fk.IndexName)
	assert.Equal(t, "SET NULL", fk.DeleteAction)
	assert.False(t, fk.InPrimaryKey)
}

func TestBuildPlan_CompositeKeyMembership(t *testing.T) {
	plan, err := buildPlan(context.Background(), friendshipsCatalog(), mysqlTestDialect(t), "users", "", "")
	require.NoError(t, err)
	require.Len(t, plan.ForeignKeys, 2)
	for _, fk := range plan.ForeignKeys {
		assert.True(t, fk.InPrimaryKey, fk.Column)
		assert.Equal(t, []string{"user_id", "friend_id"}, fk.PrimaryKey.Columns)
	}
	assert.Equal(t, PrimaryKeySpec{Columns: []string{"id"}}, plan.RestoredPrimaryKey())
}

func TestSupportingIndexName(t *testing.T) {
	tests := []struct {
		constraint string
		want       string
	}{
		{"FK_8F02BF9DA76ED395", "IDX_8F02BF9DA76ED395"},
		{"fk_posts_user", "idx_posts_user"},
		{"posts_user_id_fkey", "posts_user_id_idx"},
		{"posts_author", "posts_author_idx"},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			assert.Equal(t, tt.want, supportingIndexName(tt.constraint))
		})
	}
}

func TestBuildPlan_TwoForeignKeysOnOneColumnRejected(t *testing.T) {
	cat := usersPostsCatalog()
	posts := cat.table("posts")
	posts.fks = append(posts.fks, ForeignKeySpec{
		Name: "posts_user_id_fkey1", Columns: []string{"user_id"},
		RefTable: "users", RefColumns: []string{"id"},
	})

	_, err := buildPlan(context.Background(), cat, pgTestDialect(t), "users", "", "")
	var unsupported *UnsupportedConfigurationError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Reason, "posts.user_id carries two foreign keys to users")
}
