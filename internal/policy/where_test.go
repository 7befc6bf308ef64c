package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/policy"
)

func TestBuildOwnershipWhere(t *testing.T) {
	extra := policy.Conditions{"category_id": "c1"}

	tests := []struct {
		name    string
		subject *ownership.Subject
		want    policy.Conditions
	}{
		{"admin sees all", admin1, policy.Conditions{"category_id": "c1"}},
		{"user pinned to own rows", user1, policy.Conditions{"category_id": "c1", "user_id": "user-1"}},
		{"anonymous pinned to orphans", nil, policy.Conditions{"category_id": "c1", "user_id": policy.Null}},
		{"empty id pinned to orphans", &ownership.Subject{Role: ownership.RoleUser}, policy.Conditions{"category_id": "c1", "user_id": policy.Null}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.BuildOwnershipWhere(tt.subject, extra))
		})
	}
	assert.Equal(t, policy.Conditions{"category_id": "c1"}, extra, "extra is not mutated")
}

func TestBuildOwnershipWhere_OverridesCallerOwner(t *testing.T) {
	got := policy.BuildOwnershipWhere(user1, policy.Conditions{"user_id": "user-2"})
	assert.Equal(t, "user-1", got["user_id"])

	got = policy.BuildOwnershipWhere(user1, nil)
	assert.Equal(t, policy.Conditions{"user_id": "user-1"}, got)
}

func TestRequireOwnershipWhere(t *testing.T) {
	_, err := policy.RequireOwnershipWhere(nil, nil)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))

	_, err = policy.RequireOwnershipWhere(&ownership.Subject{}, nil)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))

	got, err := policy.RequireOwnershipWhere(admin1, policy.Conditions{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, policy.Conditions{"name": "x"}, got)

	got, err = policy.RequireOwnershipWhere(user2, nil)
	require.NoError(t, err)
	assert.Equal(t, "user-2", got["user_id"])
}

func TestCanAccessResource(t *testing.T) {
	assert.True(t, policy.CanAccessResource(admin1, nil))
	assert.True(t, policy.CanAccessResource(admin1, strPtr("user-2")))
	assert.True(t, policy.CanAccessResource(user1, strPtr("user-1")))
	assert.False(t, policy.CanAccessResource(user1, strPtr("user-2")))
	assert.False(t, policy.CanAccessResource(user1, nil))
	assert.False(t, policy.CanAccessResource(nil, strPtr("user-1")))
	assert.False(t, policy.CanAccessResource(&ownership.Subject{}, nil))
}

func TestScope_FiltersRows(t *testing.T) {
	gdb := setupTestDB(t)
	rows := []models.Product{
		{ID: "p1", Code: "A", Name: "A", UserID: strPtr("user-1")},
		{ID: "p2", Code: "B", Name: "B", UserID: strPtr("user-2")},
		{ID: "p3", Code: "C", Name: "C"},
	}
	require.NoError(t, gdb.Create(&rows).Error)

	ids := func(s *ownership.Subject) []string {
		var out []string
		require.NoError(t, gdb.Model(&models.Product{}).Scopes(policy.OwnedBy(s)).Order("id").Pluck("id", &out).Error)
		return out
	}

	assert.Equal(t, []string{"p1"}, ids(user1))
	assert.Equal(t, []string{"p2"}, ids(user2))
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(admin1))
	assert.Equal(t, []string{"p3"}, ids(nil))
}
