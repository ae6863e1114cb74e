package ident

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Category names the PRECIS derived property (RFC 8264 section 8) that makes a
// code point disallowed in the IdentifierClass.
type Category string

const (
	Exceptions        Category = "exceptions"
	Unassigned        Category = "unassigned"
	OldHangulJamo     Category = "old_hangul_jamo"
	Ignorable         Category = "precis_ignorable_properties"
	Controls          Category = "controls"
	HasCompat         Category = "has_compat"
	OtherLetterDigits Category = "other_letter_digits"
	Spaces            Category = "spaces"
	Symbols           Category = "symbols"
	Punctuation       Category = "punctuation"
	Other             Category = "other"
)

var oldHangulJamo = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x1100, Hi: 0x11ff, Stride: 1},
		{Lo: 0xa960, Hi: 0xa97f, Stride: 1},
		{Lo: 0xd7b0, Hi: 0xd7ff, Stride: 1},
	},
}

// RFC 5892 section 2.6.
var (
	exceptionsValid = &unicode.RangeTable{
		R16: []unicode.Range16{
			{Lo: 0x00df, Hi: 0x00df, Stride: 1},
			{Lo: 0x03c2, Hi: 0x03c2, Stride: 1},
			{Lo: 0x06fd, Hi: 0x06fe, Stride: 1},
			{Lo: 0x0f0b, Hi: 0x0f0b, Stride: 1},
			{Lo: 0x3007, Hi: 0x3007, Stride: 1},
		},
	}
	exceptionsContextual = &unicode.RangeTable{
		R16: []unicode.Range16{
			{Lo: 0x00b7, Hi: 0x00b7, Stride: 1},
			{Lo: 0x0375, Hi: 0x0375, Stride: 1},
			{Lo: 0x05f3, Hi: 0x05f4, Stride: 1},
			{Lo: 0x0660, Hi: 0x0669, Stride: 1},
			{Lo: 0x06f0, Hi: 0x06f9, Stride: 1},
			{Lo: 0x30fb, Hi: 0x30fb, Stride: 1},
		},
	}
	exceptionsDisallowed = &unicode.RangeTable{
		R16: []unicode.Range16{
			{Lo: 0x0640, Hi: 0x0640, Stride: 1},
			{Lo: 0x07fa, Hi: 0x07fa, Stride: 1},
			{Lo: 0x302e, Hi: 0x302f, Stride: 1},
			{Lo: 0x3031, Hi: 0x3035, Stride: 1},
			{Lo: 0x303b, Hi: 0x303b, Stride: 1},
		},
	}
)

var assigned = []*unicode.RangeTable{
	unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z,
	unicode.Cc, unicode.Cf, unicode.Co, unicode.Cs,
}

// Classify reports the category that disallows r in the IdentifierClass, walking
// the derived properties in RFC 8264 order. ok is false when r is valid or only
// contextually valid; contextual rules are left to the PRECIS enforcement step.
func Classify(r rune) (c Category, ok bool) {
	switch {
	case unicode.Is(exceptionsValid, r), unicode.Is(exceptionsContextual, r):
		return "", false
	case unicode.Is(exceptionsDisallowed, r):
		return Exceptions, true
	case unicode.Is(unicode.Noncharacter_Code_Point, r):
		return Ignorable, true
	case !unicode.In(r, assigned...):
		return Unassigned, true
	case r >= 0x21 && r <= 0x7e:
		return "", false
	case unicode.Is(unicode.Join_Control, r):
		return "", false
	case unicode.Is(oldHangulJamo, r):
		return OldHangulJamo, true
	case isDefaultIgnorable(r):
		return Ignorable, true
	case unicode.Is(unicode.Cc, r):
		return Controls, true
	case hasCompat(r):
		return HasCompat, true
	case unicode.In(r, unicode.Ll, unicode.Lu, unicode.Lo, unicode.Nd, unicode.Lm, unicode.Mn, unicode.Mc):
		return "", false
	case unicode.In(r, unicode.Lt, unicode.Nl, unicode.No, unicode.Me):
		return OtherLetterDigits, true
	case unicode.Is(unicode.Zs, r):
		return Spaces, true
	case unicode.In(r, unicode.Sm, unicode.Sc, unicode.Sk, unicode.So):
		return Symbols, true
	case unicode.Is(unicode.P, r):
		return Punctuation, true
	default:
		return Other, true
	}
}

// isDefaultIgnorable approximates the derived Default_Ignorable_Code_Point
// property from the tables the unicode package ships.
func isDefaultIgnorable(r rune) bool {
	if unicode.Is(unicode.White_Space, r) {
		return false
	}
	if unicode.Is(unicode.Other_Default_Ignorable_Code_Point, r) || unicode.Is(unicode.Variation_Selector, r) {
		return true
	}
	if !unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Prepended_Concatenation_Mark, r) {
		return false
	}
	switch {
	case r >= 0xfff9 && r <= 0xfffb:
		return false
	case r >= 0x13430 && r <= 0x1343f:
		return false
	}
	return true
}

func hasCompat(r rune) bool {
	s := string(r)
	return norm.NFKC.String(s) != s
}
