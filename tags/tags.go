// Package tags validates and normalizes booru search tags, catching
// common mistakes before they cost an HTTP round trip.
package tags

import (
	"fmt"
	"strings"
)

// Normalization is deliberately uniform across sites: leading and trailing
// whitespace is trimmed silently, and mixed case is lowercase-folded
// silently, because booru tag vocabularies are lowercase on every supported
// site and the fold never changes token identity. Interior whitespace is
// the one repair that gets a warning, since "cat ears" is usually a typo'd
// "cat_ears" but might be two tags the caller meant to add separately.

// WarningKind classifies a non-fatal validation finding.
type WarningKind int

const (
	// WarnEmpty: the input was empty or whitespace-only.
	WarnEmpty WarningKind = iota
	// WarnSpaces: interior whitespace was replaced with underscores.
	WarnSpaces
	// WarnConsecutiveUnderscores: the tag contains "__".
	WarnConsecutiveUnderscores
	// WarnVeryLong: the tag is long enough to risk URL length limits.
	WarnVeryLong
	// WarnUnusualCharacters: characters outside the usual tag alphabet.
	WarnUnusualCharacters
	// WarnMetaTag: a meta-tag prefix that only some sites understand.
	WarnMetaTag
)

// Warning is a non-fatal finding about a tag. The tag is still usable.
type Warning struct {
	Kind    WarningKind
	Message string
}

func (w Warning) String() string { return w.Message }

// Validation is the result of validating a single raw tag.
type Validation struct {
	// Original is the input exactly as given.
	Original string
	// Normalized is the tag to use on the wire.
	Normalized string
	// Warnings lists non-fatal findings.
	Warnings []Warning
	// Valid is false only for empty or whitespace-only input.
	Valid bool
}

// Tag returns the normalized tag.
func (v Validation) Tag() string { return v.Normalized }

// HasWarnings reports whether validation produced any warnings.
func (v Validation) HasWarnings() bool { return len(v.Warnings) > 0 }

// InvalidTagError means a tag is unusable, as opposed to merely suspicious.
type InvalidTagError struct {
	Tag    string
	Reason string
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid tag %q: %s", e.Tag, e.Reason)
}

// Meta-tag prefixes understood by all supported sites.
var commonMetaPrefixes = map[string]bool{
	"rating": true, "score": true, "order": true, "sort": true,
	"user": true, "height": true, "width": true, "id": true,
	"md5": true, "source": true, "parent": true, "pool": true,
}

// Meta-tag prefixes that only Danbooru understands.
var danbooruMetaPrefixes = map[string]bool{
	"pixiv_id": true, "favcount": true, "gentags": true, "arttags": true,
	"chartags": true, "copytags": true, "approver": true, "commenter": true,
	"noter": true, "flagger": true,
}

const veryLongThreshold = 100

// Validate normalizes a raw tag and reports anything suspicious about it.
// It is a pure function with no side effects.
func Validate(raw string) Validation {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Validation{
			Original: raw,
			Valid:    false,
			Warnings: []Warning{{Kind: WarnEmpty, Message: "tag is empty"}},
		}
	}

	var warnings []Warning
	normalized := strings.ToLower(trimmed)

	if fields := strings.Fields(normalized); len(fields) > 1 {
		suggested := strings.Join(fields, "_")
		warnings = append(warnings, Warning{
			Kind:    WarnSpaces,
			Message: fmt.Sprintf("tag contains spaces: %q — did you mean %q?", normalized, suggested),
		})
		normalized = suggested
	}

	if strings.Contains(normalized, "__") {
		warnings = append(warnings, Warning{
			Kind:    WarnConsecutiveUnderscores,
			Message: "tag contains consecutive underscores",
		})
	}

	if len(normalized) > veryLongThreshold {
		warnings = append(warnings, Warning{
			Kind:    WarnVeryLong,
			Message: fmt.Sprintf("tag is very long (%d chars), may cause issues", len(normalized)),
		})
	}

	if unusual := unusualChars(normalized); len(unusual) > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarnUnusualCharacters,
			Message: fmt.Sprintf("tag contains unusual characters: %q", string(unusual)),
		})
	}

	if prefix, _, found := strings.Cut(normalized, ":"); found {
		if !commonMetaPrefixes[prefix] && danbooruMetaPrefixes[prefix] {
			warnings = append(warnings, Warning{
				Kind:    WarnMetaTag,
				Message: fmt.Sprintf("meta tag %q may not be supported on all booru sites", prefix+":"),
			})
		}
	}

	return Validation{
		Original:   raw,
		Normalized: normalized,
		Warnings:   warnings,
		Valid:      true,
	}
}

// ValidateStrict normalizes a raw tag or fails with *InvalidTagError.
// Warnings do not fail strict validation; only unusable input does.
func ValidateStrict(raw string) (string, error) {
	v := Validate(raw)
	if !v.Valid {
		reason := "empty tag"
		if len(v.Warnings) > 0 {
			reason = v.Warnings[0].Message
		}
		return "", &InvalidTagError{Tag: raw, Reason: reason}
	}
	return v.Normalized, nil
}

// ValidateAll strictly validates every tag, short-circuiting on the first
// failure.
func ValidateAll(raws ...string) ([]string, error) {
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		tag, err := ValidateStrict(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, nil
}

func unusualChars(tag string) []rune {
	var unusual []rune
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case strings.ContainsRune("_-:()<>=.*?", r):
		case r > 127: // non-ASCII tags are common on several sites
		default:
			unusual = append(unusual, r)
		}
	}
	return unusual
}
