package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyVariant(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		want    Edition
	}{
		{
			name:    "plain pro license",
			variant: "Pro License",
			want:    EditionPro,
		},
		{
			name:    "team outranks pro in combined names",
			variant: "Pro Team Bundle",
			want:    EditionTeam,
		},
		{
			name:    "enterprise outranks everything",
			variant: "Enterprise Team Pro Starter",
			want:    EditionEnterprise,
		},
		{
			name:    "starter",
			variant: "Starter (Yearly)",
			want:    EditionStarter,
		},
		{
			name:    "case insensitive",
			variant: "UNDERGROWTH PRO",
			want:    EditionPro,
		},
		{
			name:    "unrecognized name falls back to community",
			variant: "Limited Holiday Deal",
			want:    EditionCommunity,
		},
		{
			name:    "empty input falls back to community",
			variant: "",
			want:    EditionCommunity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyVariant(tt.variant))
		})
	}
}

func TestClassifyVariantIsPure(t *testing.T) {
	// Same input, same output, every time. No hidden state.
	for i := 0; i < 3; i++ {
		assert.Equal(t, EditionTeam, ClassifyVariant("Team License"))
	}
}

func TestFeaturesTotalAndDeterministic(t *testing.T) {
	editions := []Edition{
		EditionCommunity, EditionStarter, EditionPro, EditionTeam, EditionEnterprise,
	}

	for _, e := range editions {
		t.Run(string(e), func(t *testing.T) {
			first := Features(e)
			second := Features(e)
			require.NotEmpty(t, first)
			assert.Equal(t, first, second)
		})
	}

	// Unknown editions resolve to the community set instead of failing.
	assert.Equal(t, Features(EditionCommunity), Features(Edition("galactic")))
}

func TestFeaturesTiersAreSupersets(t *testing.T) {
	// Each paid tier carries everything below it; validators rely on flag
	// presence, not tier comparisons.
	ordered := []Edition{
		EditionCommunity, EditionStarter, EditionPro, EditionTeam, EditionEnterprise,
	}
	for i := 1; i < len(ordered); i++ {
		lower := Features(ordered[i-1])
		higher := Features(ordered[i])
		for _, flag := range lower {
			assert.Contains(t, higher, flag,
				"%s should include %s flag %q", ordered[i], ordered[i-1], flag)
		}
	}
}

func TestFeaturesReturnsCopy(t *testing.T) {
	mutated := Features(EditionPro)
	mutated[0] = "tampered"
	assert.NotContains(t, Features(EditionPro), "tampered")
}

func TestValidityYears(t *testing.T) {
	// Community licenses are meant to function indefinitely; paid tiers are
	// subscription-bound.
	assert.Equal(t, 100, ValidityYears(EditionCommunity))
	for _, e := range []Edition{EditionStarter, EditionPro, EditionTeam, EditionEnterprise} {
		assert.Equal(t, 1, ValidityYears(e), "edition %s", e)
	}
	assert.Equal(t, 100, ValidityYears(Edition("unknown")))
}

func TestEditionValid(t *testing.T) {
	assert.True(t, EditionPro.Valid())
	assert.False(t, Edition("ultimate").Valid())
}
