// Package mobierr defines the error kinds surfaced while unpacking a
// Mobipocket/KF8 container. Most are local and recoverable; only
// FormatError and EncryptedContent abort the whole run.
package mobierr

import "fmt"

// FormatError means the input isn't a container this decoder understands:
// bad Palm-DB identifier, unsupported compression id, bad INDX magic.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return fmt.Sprintf("mobiunpack: format error: %s", e.Reason) }

// EncryptedContent is returned when the Mobi header's crypto_type is nonzero.
// DRM handling is out of scope; the caller should abort.
type EncryptedContent struct {
	CryptoType uint16
}

func (e *EncryptedContent) Error() string {
	return fmt.Sprintf("mobiunpack: encrypted content (crypto_type=%d), decryption not supported", e.CryptoType)
}

// ResourceDecodeFailure marks a single resource record (font, image, ...)
// that could not be decoded. The offending asset is stored opaquely and
// the run continues.
type ResourceDecodeFailure struct {
	Index  int
	Reason string
}

func (e *ResourceDecodeFailure) Error() string {
	return fmt.Sprintf("mobiunpack: resource %d: %s", e.Index, e.Reason)
}

// IndexInconsistency marks a KF8 fragment insertion that landed mid-tag.
// A repair via aid search is attempted; if it fails the uncorrected
// position is used and the run continues.
type IndexInconsistency struct {
	Detail string
}

func (e *IndexInconsistency) Error() string {
	return fmt.Sprintf("mobiunpack: index inconsistency: %s", e.Detail)
}

// DictionaryRuleFailure marks an inflection rule whose delete byte did not
// match the literal it expected to pop. That inflection is skipped.
type DictionaryRuleFailure struct {
	Entry string
}

func (e *DictionaryRuleFailure) Error() string {
	return fmt.Sprintf("mobiunpack: inflection rule failed for %q", e.Entry)
}

// SplitterMissingBoundary means a combo split was requested but no EXTH
// 121 (KF8 boundary) record was present. Splitting is silently disabled.
type SplitterMissingBoundary struct{}

func (e *SplitterMissingBoundary) Error() string {
	return "mobiunpack: no KF8 boundary found, split disabled"
}

// Fatal reports whether err should abort the whole run rather than be
// logged and skipped.
func Fatal(err error) bool {
	switch err.(type) {
	case *FormatError, *EncryptedContent:
		return true
	default:
		return false
	}
}
