package license

import "strings"

// Edition identifies a commercial license tier. The set is closed; anything
// the payment provider sends that does not match a known tier classifies as
// EditionCommunity.
type Edition string

const (
	EditionCommunity  Edition = "community"
	EditionStarter    Edition = "starter"
	EditionPro        Edition = "pro"
	EditionTeam       Edition = "team"
	EditionEnterprise Edition = "enterprise"
)

// SchemaVersion is the license header schema tag. Validators carry it through
// unmodified for forward compatibility.
const SchemaVersion = 2

// featureTable is the single source of truth mapping editions to entitlement
// flags. Feature order is part of the payload contract; do not sort.
var featureTable = map[Edition][]string{
	EditionCommunity:  {"local_auth", "plugin_sandbox"},
	EditionStarter:    {"local_auth", "plugin_sandbox", "no_badge", "clean_export"},
	EditionPro:        {"local_auth", "plugin_sandbox", "unlimited_workflows", "unlimited_history", "unlimited_ai", "no_badge", "clean_export"},
	EditionTeam:       {"local_auth", "plugin_sandbox", "unlimited_workflows", "unlimited_history", "unlimited_ai", "no_badge", "clean_export", "multi_user_auth", "rbac", "audit_export"},
	EditionEnterprise: {"local_auth", "plugin_sandbox", "unlimited_workflows", "unlimited_history", "unlimited_ai", "no_badge", "clean_export", "multi_user_auth", "rbac", "audit_export", "sso_oidc", "volume_activation"},
}

// validityYears maps editions to default license duration. Paid tiers are
// yearly subscriptions; community licenses are meant to outlive the product.
var validityYears = map[Edition]int{
	EditionCommunity:  100,
	EditionStarter:    1,
	EditionPro:        1,
	EditionTeam:       1,
	EditionEnterprise: 1,
}

// Features returns the entitlement flags for an edition. The lookup is total:
// unknown editions receive the community feature set. The returned slice is a
// copy; callers may append to it.
func Features(e Edition) []string {
	features, ok := featureTable[e]
	if !ok {
		features = featureTable[EditionCommunity]
	}
	out := make([]string, len(features))
	copy(out, features)
	return out
}

// ValidityYears returns the default license duration for an edition, used
// when the upstream purchase record carries no expiry of its own.
func ValidityYears(e Edition) int {
	if years, ok := validityYears[e]; ok {
		return years
	}
	return validityYears[EditionCommunity]
}

// Valid reports whether e is a member of the closed edition enum.
func (e Edition) Valid() bool {
	_, ok := featureTable[e]
	return ok
}

// classifierRules are checked in descending specificity so a variant name
// containing both a broader and a narrower keyword resolves to the higher
// tier ("Pro Team Bundle" is a team license, not a pro one).
var classifierRules = []struct {
	keyword string
	edition Edition
}{
	{"enterprise", EditionEnterprise},
	{"team", EditionTeam},
	{"pro", EditionPro},
	{"starter", EditionStarter},
}

// ClassifyVariant maps a free-text product or variant name from the payment
// provider onto a canonical edition. It is pure and total: malformed or empty
// provider text falls back to the community tier rather than blocking
// issuance.
func ClassifyVariant(variantName string) Edition {
	name := strings.ToLower(variantName)
	for _, rule := range classifierRules {
		if strings.Contains(name, rule.keyword) {
			return rule.edition
		}
	}
	return EditionCommunity
}
