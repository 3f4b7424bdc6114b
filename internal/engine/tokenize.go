package engine

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Tokenize lowercases text, strips everything except ASCII word characters,
// Cyrillic letters and whitespace, splits on whitespace and drops tokens
// shorter than two characters. Order is preserved; adjacent tokens form edges.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'а' && r <= 'я', r == 'ё':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, strings.ToLower(text))

	fields := strings.Fields(cleaned)
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// hashString is the 31-multiplier string hash over UTF-16 code units with
// 32-bit wraparound on the shift, kept bit-compatible with previously
// persisted layouts.
func hashString(s string) float64 {
	var h float64
	for _, c := range utf16.Encode([]rune(s)) {
		shifted := float64(toInt32(h) << 5)
		h = float64(c) + (shifted - h)
	}
	return h
}

func toInt32(f float64) int32 {
	return int32(uint32(int64(math.Trunc(f))))
}

// TextVector derives a deterministic pseudo-embedding from text. It is a
// layout coordinate, not a semantic embedding.
func TextVector(text string) Vector {
	return Vector{
		X: math.Sin(hashString(text)*0.01) * 2,
		Y: math.Cos(hashString(text+"_y")*0.01) * 2,
		Z: math.Sin(hashString(text+"_z")*0.01) * 2,
	}
}
