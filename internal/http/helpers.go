package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chartscope/internal/core"
)

// viewSelection resolves the selection driving a partial: explicit country
// and year query parameters win, anything missing falls back to the shared
// selection state.
func (s *Server) viewSelection(r *http.Request) core.Selection {
	sel := s.selection.Current()
	if v := sanitizeInput(r.URL.Query().Get("country")); v != "" {
		sel.Country = v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			sel.Year = y
		}
	}
	return sel
}

// parseIntParam reads an integer query parameter, falling back to def when
// missing or malformed.
func parseIntParam(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// formatCount renders an integer with thousands separators (e.g. "9,876,543").
func formatCount(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	if len(s) > 3 {
		var b strings.Builder
		lead := len(s) % 3
		if lead > 0 {
			b.WriteString(s[:lead])
		}
		for i := lead; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

// formatRatio renders diversity and rank averages with two decimals.
func formatRatio(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// barWidth converts a value into a 0..100 percentage of max for CSS bar
// scaling, keeping tiny non-zero values visible.
func barWidth(value, max int64) int {
	if max <= 0 || value <= 0 {
		return 0
	}
	width := int((value*100 + max/2) / max)
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
