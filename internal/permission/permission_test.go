package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	reg, err := registry.FromSchema(&dsl.OntologySchema{
		Version: "1.0",
		ObjectTypes: []dsl.ObjectType{{
			Name:       "Alert",
			PrimaryKey: "alert_id",
			Properties: []dsl.Property{{Name: "alert_id", DataType: "string", Required: true}},
		}},
		Actions: []dsl.ActionType{{
			Name:                "acknowledge_alert",
			TargetObjectType:    "Alert",
			RequiredPermissions: []string{"alert_responder", "ops_lead"},
		}},
	})
	require.NoError(t, err)
	return NewGate(reg)
}

func TestAuthorize(t *testing.T) {
	g := testGate(t)

	tests := []struct {
		name      string
		principal Principal
		wantErr   error
	}{
		{"holds one", Principal{ID: "u1", Permissions: []string{"ops_lead"}}, nil},
		{"holds none", Principal{ID: "u2", Permissions: []string{"fleet_manager"}}, apperr.ErrPermissionDenied},
		{"empty", Principal{ID: "u3"}, apperr.ErrPermissionDenied},
		{"admin", Principal{ID: "admin", Role: RoleAdmin}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Authorize(tt.principal, "acknowledge_alert")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	var pde *apperr.PermissionDeniedError
	require.ErrorAs(t, g.Authorize(Principal{ID: "u2"}, "acknowledge_alert"), &pde)
	assert.Equal(t, []string{"alert_responder", "ops_lead"}, pde.Required)

	assert.ErrorIs(t, g.Authorize(Principal{Role: RoleAdmin}, "launch_rocket"), apperr.ErrNotFound)
}

func TestInScope(t *testing.T) {
	p := Principal{Scopes: map[string][]string{"alert_types": {"Inventory", "Quality"}}}
	assert.True(t, p.InScope("alert_types", "Quality"))
	assert.False(t, p.InScope("alert_types", "Safety"))
	assert.True(t, p.InScope("regions", "West"), "no restriction on unlisted scopes")

	wildcard := Principal{Scopes: map[string][]string{"alert_types": {"*"}}}
	assert.True(t, wildcard.InScope("alert_types", "Safety"))

	admin := Principal{Role: RoleAdmin, Scopes: map[string][]string{"alert_types": {}}}
	assert.True(t, admin.InScope("alert_types", "Safety"))
}
