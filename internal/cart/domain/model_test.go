package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestShippingCostBillableWeightTiers(t *testing.T) {
	rate := decimal.NewFromInt(30)

	cases := []struct {
		weight string
		want   string
	}{
		{"0", "0"},
		{"-1", "0"},
		{"0.2", "30"},
		{"0.9", "30"},
		{"1", "30"},
		{"1.1", "60"},
		{"2", "60"},
		{"2.5", "90"},
	}
	for _, tc := range cases {
		got := ShippingCost(decimal.RequireFromString(tc.weight), rate)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"weight %s: want %s, got %s", tc.weight, tc.want, got)
	}
}

func TestIdentityUnion(t *testing.T) {
	user := UserIdentity(snowflake.ID(42))
	assert.True(t, user.IsUser())
	id, ok := user.UserID()
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(42), id)
	_, ok = user.SessionToken()
	assert.False(t, ok)

	session := SessionIdentity("tok-123")
	assert.False(t, session.IsUser())
	token, ok := session.SessionToken()
	assert.True(t, ok)
	assert.Equal(t, "tok-123", token)

	assert.True(t, Identity{}.IsZero())
	assert.False(t, session.IsZero())
}
