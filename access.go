package unprotect

// OptionName is the key under which Options are stored.
const OptionName = "unprotect_protected_posts"

// trustFlagYes is the only stored value that enables trust in logged-in users.
const trustFlagYes = "yes"

// Options is the stored option record as the settings form submits it.
type Options struct {
	// GiveAccess is "yes" when logged-in users bypass the password.
	GiveAccess string `json:"give_access"`

	// IPAddresses is the raw allow-list, one entry per line. It is stored
	// verbatim.
	IPAddresses string `json:"ip_addresses"`
}

// ParseTrustFlag maps the stored give_access value to a bool. Only the exact
// value "yes" enables it.
func ParseTrustFlag(v string) bool {
	return v == trustFlagYes
}

// FormatTrustFlag maps a bool to the stored give_access value.
func FormatTrustFlag(trust bool) string {
	if trust {
		return trustFlagYes
	}
	return ""
}

// Configuration builds an AccessConfiguration from the stored options without
// validating the allow-list. Malformed entries simply never match.
func (o Options) Configuration() AccessConfiguration {
	return NewAccessConfiguration(ParseTrustFlag(o.GiveAccess), SplitAllowList(o.IPAddresses))
}

// ValidateOptions validates o for saving. It fails with an *InvalidEntryError
// on the first bad allow-list line.
func ValidateOptions(o Options) (AccessConfiguration, error) {
	list, err := ParseAllowList(o.IPAddresses)
	if err != nil {
		return AccessConfiguration{}, err
	}
	return NewAccessConfiguration(ParseTrustFlag(o.GiveAccess), list), nil
}

// AccessConfiguration is a read-only snapshot of the bypass settings.
//
// A configuration built with NewAccessConfiguration carries a compiled
// prefix trie of its allow-list. Mutating AllowList afterwards is not
// reflected in the trie; build a new configuration instead.
type AccessConfiguration struct {
	TrustLoggedIn bool
	AllowList     AllowList

	compiled *compiledAllowList
}

// NewAccessConfiguration returns a configuration with its allow-list compiled
// for matching.
func NewAccessConfiguration(trustLoggedIn bool, list AllowList) AccessConfiguration {
	return AccessConfiguration{
		TrustLoggedIn: trustLoggedIn,
		AllowList:     list,
		compiled:      compileAllowList(list),
	}
}

// Unmatchable returns the entries that can never match a client: IPv6
// entries and entries that fail range parsing.
func (c AccessConfiguration) Unmatchable() []string {
	if c.compiled != nil {
		return c.compiled.skipped
	}

	var out []string
	for _, entry := range c.AllowList {
		if _, err := ParseRange(entry); err != nil {
			out = append(out, entry)
		}
	}
	return out
}

// Options converts the configuration back to its stored form.
func (c AccessConfiguration) Options() Options {
	return Options{
		GiveAccess:  FormatTrustFlag(c.TrustLoggedIn),
		IPAddresses: c.AllowList.String(),
	}
}
