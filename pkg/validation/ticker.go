// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for security-critical
// operations.
//
// Ticker symbols arrive from the model's tool arguments, which means
// they are indirectly user-controlled. They end up interpolated into
// upstream request URLs, so they are validated here before use.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// tickerPattern matches valid stock ticker symbols.
// Allows: uppercase letters, digits, dots (BRK.A), hyphens (BF-B)
// Max length: 10 characters (covers most exchanges)
var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// ValidateTicker validates a stock ticker symbol before it is placed in
// an upstream request URL.
//
// Valid tickers:
//   - 1-10 characters
//   - Uppercase letters A-Z
//   - Digits 0-9
//   - Dots (.) for class shares like BRK.A
//   - Hyphens (-) for class shares like BF-B
//
// Returns an error if the ticker is invalid.
func ValidateTicker(ticker string) error {
	if ticker == "" {
		return fmt.Errorf("ticker cannot be empty")
	}

	if !tickerPattern.MatchString(ticker) {
		return fmt.Errorf("invalid ticker format: %q (must be 1-10 uppercase alphanumeric chars, dots, or hyphens)", ticker)
	}

	return nil
}

// SanitizeTicker normalizes and validates a ticker symbol.
// Returns the uppercase ticker if valid, or an error if invalid.
//
// Use this at the boundary where model-supplied arguments enter the
// data layer:
//
//	safeTicker, err := validation.SanitizeTicker(args.Ticker)
//	if err != nil {
//	    return err
//	}
func SanitizeTicker(ticker string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	if err := ValidateTicker(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
