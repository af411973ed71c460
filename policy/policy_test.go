package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_IsAllowed(t *testing.T) {
	type testCase struct {
		name     string
		policy   *Policy
		language string
		expected bool
	}

	cases := []testCase{
		{name: "nil policy", policy: nil, language: "python", expected: true},
		{name: "empty lists", policy: &Policy{}, language: "sh", expected: true},
		{name: "allow list hit", policy: &Policy{AllowList: []string{"Python"}}, language: "python", expected: true},
		{name: "allow list miss", policy: &Policy{AllowList: []string{"python"}}, language: "sh", expected: false},
		{name: "block list wins", policy: &Policy{AllowList: []string{"sh"}, BlockList: []string{"SH"}}, language: "sh", expected: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.policy.IsAllowed(tc.language))
		})
	}
}

func TestPolicy_EffectiveMode(t *testing.T) {
	assert.Equal(t, ModeAsk, (*Policy)(nil).EffectiveMode())
	assert.Equal(t, ModeAsk, (&Policy{}).EffectiveMode())
	assert.Equal(t, ModeAsk, (&Policy{Mode: "whatever"}).EffectiveMode())
	assert.Equal(t, ModeAuto, (&Policy{Mode: " AUTO "}).EffectiveMode())
	assert.Equal(t, ModeDeny, (&Policy{Mode: "deny"}).EffectiveMode())
}

func TestConfigRoundTrip(t *testing.T) {
	p := &Policy{Mode: ModeAuto, AllowList: []string{"python"}, BlockList: []string{"sh"}}
	assert.EqualValues(t, p, FromConfig(ToConfig(p)))
	assert.Nil(t, ToConfig(nil))
	assert.Nil(t, FromConfig(nil))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{Mode: "Deny"}).Validate())
	assert.Error(t, (&Config{Mode: "maybe"}).Validate())
}

func TestContext(t *testing.T) {
	p := &Policy{Mode: ModeDeny}
	ctx := WithPolicy(context.Background(), p)
	assert.Same(t, p, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
