package probe

import (
	"os"
	"unicode/utf8"
)

// MaxHostnameLen is the longest hostname printed, in bytes. Longer names are
// truncated.
const MaxHostnameLen = 255

// LocalHostname returns the local machine's name, truncated to
// MaxHostnameLen. A failed lookup yields the empty string.
func LocalHostname() string {
	return hostnameFrom(os.Hostname)
}

func hostnameFrom(lookup func() (string, error)) string {
	name, err := lookup()
	if err != nil {
		return ""
	}
	return TruncateHostname(name)
}

// TruncateHostname cuts name to at most MaxHostnameLen bytes without splitting
// a UTF-8 sequence.
func TruncateHostname(name string) string {
	if len(name) <= MaxHostnameLen {
		return name
	}
	cut := MaxHostnameLen
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
