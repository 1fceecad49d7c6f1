package permission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/config"
)

func TestPolicyGate(t *testing.T) {
	model := config.NewModel()
	model.Permissions["CONTROL_DEVICE"] = &config.PermissionPolicy{Type: "CONTROL_DEVICE", Decision: "confirm"}
	model.Permissions["EXECUTE_CODE"] = &config.PermissionPolicy{Type: "EXECUTE_CODE", Decision: "deny"}
	model.Permissions["SPEAK"] = &config.PermissionPolicy{Type: "SPEAK", Decision: "allow"}

	gate := NewPolicyGate(model)
	ctx := context.Background()

	mk := func(typ action.Type) *action.Action {
		return action.New("a", typ, nil, time.Second, 0)
	}

	assert.Equal(t, NeedsConfirmation, gate.Check(ctx, mk(action.ControlDevice)))
	assert.Equal(t, Denied, gate.Check(ctx, mk(action.ExecuteCode)))
	assert.Equal(t, Allowed, gate.Check(ctx, mk(action.Speak)))

	// Types without a policy default to allow.
	assert.Equal(t, Allowed, gate.Check(ctx, mk(action.CallAPI)))
}

func TestStaticConfirmer(t *testing.T) {
	ctx := context.Background()
	a := action.New("a", action.ControlDevice, nil, time.Second, 0)

	ok, err := StaticConfirmer(true).Confirm(ctx, a)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = StaticConfirmer(false).Confirm(ctx, a)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "denied", Denied.String())
	assert.Equal(t, "needs_confirmation", NeedsConfirmation.String())
}
