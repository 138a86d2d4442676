package parser

import (
	"regexp"
	"strings"
	"unicode"
)

// fenceRegex matches the first fenced block: a line-initial opening fence
// with an optional info string, a lazily matched body, and a line-initial
// closing fence. An empty body is allowed.
var fenceRegex = regexp.MustCompile(
	"(?m)^```" + `(?P<lang>[^\n` + "`" + `]*)\n` +
		`(?P<body>[\s\S]*?)\n?` +
		"^```")

// Response is a model reply split into a code payload and the prose around it.
type Response struct {
	// Code is the trimmed body of the first fenced block, or the whole
	// trimmed reply when no fenced block exists.
	Code string
	// Commentary is the reply with the Code span removed, trimmed.
	Commentary string
	// Lang is the info string of the fenced block, if any.
	Lang string
	// Fenced reports whether Code came from a fenced block.
	Fenced bool
}

// Parse splits raw into code and commentary. It never fails: input without
// a fenced block is treated as code in its entirety.
//
// Only the span the code was taken from is removed when computing the
// commentary. Verbatim repeats of the code elsewhere in raw are kept.
func Parse(raw string) Response {
	loc := fenceRegex.FindStringSubmatchIndex(raw)
	if loc == nil {
		code := strings.TrimSpace(raw)
		start := strings.Index(raw, code)
		return Response{
			Code:       code,
			Commentary: removeSpan(raw, start, start+len(code)),
		}
	}

	langStart, langEnd := loc[2], loc[3]
	bodyStart, bodyEnd := loc[4], loc[5]
	body := raw[bodyStart:bodyEnd]
	code := strings.TrimSpace(body)

	resp := Response{
		Code:   code,
		Lang:   strings.TrimSpace(raw[langStart:langEnd]),
		Fenced: true,
	}
	if code == "" {
		resp.Commentary = strings.TrimSpace(raw)
		return resp
	}

	start := bodyStart + len(body) - len(strings.TrimLeftFunc(body, unicode.IsSpace))
	resp.Commentary = removeSpan(raw, start, start+len(code))
	return resp
}

func removeSpan(s string, start, end int) string {
	return strings.TrimSpace(s[:start] + s[end:])
}
