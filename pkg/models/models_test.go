package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAutomationLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    AutomationLevel
		wantErr bool
	}{
		{input: "manual", want: AutomationManual},
		{input: "assisted", want: AutomationAssisted},
		{input: "semi_auto", want: AutomationSemiAuto},
		{input: "full_auto", want: AutomationFullAuto},
		{input: "turbo", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAutomationLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicyFor(t *testing.T) {
	assert.True(t, PolicyFor(AutomationManual).RequiresConfirmation)
	assert.True(t, PolicyFor(AutomationManual).RequiresHumanReview)
	assert.False(t, PolicyFor(AutomationManual).FullyAutomated)

	assert.False(t, PolicyFor(AutomationFullAuto).RequiresConfirmation)
	assert.True(t, PolicyFor(AutomationFullAuto).FullyAutomated)

	assert.True(t, PolicyFor(AutomationSemiAuto).RequiresConfirmation)
	assert.False(t, PolicyFor(AutomationSemiAuto).RequiresHumanReview)

	// Unknown levels degrade to the manual policy.
	unknown := PolicyFor(AutomationLevel("experimental"))
	assert.True(t, unknown.RequiresConfirmation)
	assert.True(t, unknown.RequiresHumanReview)
	assert.False(t, unknown.FullyAutomated)
}

func TestAutomationRuleMatches(t *testing.T) {
	task := Task{ID: "t1", Type: TaskTypeBugfix, Priority: 5}

	tests := []struct {
		name string
		rule AutomationRule
		want bool
	}{
		{
			name: "enabled rule matching type",
			rule: AutomationRule{TaskType: TaskTypeBugfix, Level: AutomationSemiAuto, Enabled: true},
			want: true,
		},
		{
			name: "disabled rule never matches",
			rule: AutomationRule{TaskType: TaskTypeBugfix, Level: AutomationSemiAuto},
			want: false,
		},
		{
			name: "type mismatch",
			rule: AutomationRule{TaskType: TaskTypeDocs, Level: AutomationFullAuto, Enabled: true},
			want: false,
		},
		{
			name: "any-type rule with priority band",
			rule: AutomationRule{MinPriority: 1, MaxPriority: 10, Level: AutomationAssisted, Enabled: true},
			want: true,
		},
		{
			name: "priority below band",
			rule: AutomationRule{MinPriority: 6, Level: AutomationAssisted, Enabled: true},
			want: false,
		},
		{
			name: "priority above band",
			rule: AutomationRule{MaxPriority: 4, Level: AutomationAssisted, Enabled: true},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(task))
		})
	}
}
