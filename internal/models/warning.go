package models

import "fmt"

// Warning kinds raised during conversion. All are recoverable: the offending
// region is left as-is (or rendered as plain text) and the run continues.
const (
	WarnMalformedMarkup     = "malformed_markup"
	WarnUnresolvedReference = "unresolved_reference"
	WarnMissingAsset        = "missing_asset"
)

// Warning is a data-quality finding attached to one document's conversion.
type Warning struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Warnf builds a Warning with a formatted detail message.
func Warnf(kind, format string, args ...any) Warning {
	return Warning{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
