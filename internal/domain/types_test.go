package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "user", want: RoleUser},
		{in: "admin", want: RoleAdmin},
		{in: "Admin", wantErr: true},
		{in: "", wantErr: true},
		{in: "superuser", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(Actor{ID: "1", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role":"admin"`)

	var a Actor
	require.NoError(t, json.Unmarshal(data, &a))
	assert.Equal(t, RoleAdmin, a.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"root"}`), &a))
}

func TestChanges(t *testing.T) {
	assert.True(t, Changes{}.Empty())

	c := QuantityChange(5)
	require.NotNil(t, c.Quantity)
	assert.Equal(t, 5, *c.Quantity)
	assert.Nil(t, c.Restock)

	r := RestockChange(true)
	require.NotNil(t, r.Restock)
	assert.True(t, *r.Restock)
	assert.False(t, r.Empty())
}

func TestActorName(t *testing.T) {
	assert.Equal(t, "Sam", Actor{DisplayName: "Sam", Email: "sam@example.com"}.Name())
	assert.Equal(t, "sam@example.com", Actor{Email: "sam@example.com"}.Name())
}

func TestProfileActor(t *testing.T) {
	p := &Profile{ID: "p1", Email: "sam@example.com", DisplayName: "Sam", Role: RoleAdmin, PasswordHash: "x"}
	assert.Equal(t, Actor{ID: "p1", Email: "sam@example.com", DisplayName: "Sam", Role: RoleAdmin}, p.Actor())
}
