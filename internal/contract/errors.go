package contract

import (
	"fmt"
	"strings"
)

// ContractMismatchError reports that a feature set or order differs from what
// a contract (or a classifier built for it) expects. It is fatal at startup or
// build time and must never surface on a live request.
type ContractMismatchError struct {
	Version    string
	Reason     string
	Missing    []string
	Unexpected []string
	// KindDiffers names fields whose numeric/categorical kind differs.
	KindDiffers []string
}

func (e *ContractMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "contract %s mismatch: %s", e.Version, e.Reason)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing: %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; unexpected: %s", strings.Join(e.Unexpected, ", "))
	}
	if len(e.KindDiffers) > 0 {
		fmt.Fprintf(&b, "; kind differs: %s", strings.Join(e.KindDiffers, ", "))
	}
	return b.String()
}
