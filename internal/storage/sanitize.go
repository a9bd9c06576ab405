package storage

import "strings"

// unsafe covers every character the provider's track names can carry that is
// not acceptable in a filename on common filesystems.
var unsafe = strings.NewReplacer(
	"/", "", "\\", "", ":", "", "*", "", "?", "",
	`"`, "", "<", "", ">", "", "|", "",
)

// SanitizeFileName strips filesystem-unsafe characters from a candidate
// display name and trims surrounding whitespace. The result is only ever
// used for display names and archive entry names; on-disk paths are keyed by
// per-run ids instead.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(unsafe.Replace(name))
}
