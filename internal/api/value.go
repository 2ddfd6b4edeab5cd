package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/geohash/internal/model"
)

var (
	// ErrNotAvailable means the source has not posted a value for the day.
	ErrNotAvailable = errors.New("value not available")

	// ErrMalformedValue means the response body was not a decimal number.
	ErrMalformedValue = errors.New("malformed value")
)

// ValuePath returns the request path for a day.
func ValuePath(date model.Date) string {
	return fmt.Sprintf("/%04d/%02d/%02d", date.Year(), int(date.Month()), date.Day())
}

// GetOpening returns the opening value posted for date.
func (c *Client) GetOpening(ctx context.Context, date model.Date) (decimal.Decimal, error) {
	body, err := c.getWithRetry(ctx, ValuePath(date))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("get opening %s: %w", date, err)
	}

	v, err := ParseValue(body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("get opening %s: %w", date, err)
	}

	c.logger.Debug("fetched opening", "date", date, "value", v.StringFixed(2))
	return v, nil
}

// ParseValue parses a plain-text response body. Bodies that announce a
// missing value (the mirrors answer "error" or "not available" with a 200 on
// some days) yield ErrNotAvailable.
func ParseValue(body []byte) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))))
	lower := strings.ToLower(text)
	if text == "" || strings.HasPrefix(lower, "error") || strings.Contains(lower, "not available") {
		return decimal.Decimal{}, ErrNotAvailable
	}

	// Only the first line carries the value.
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}

	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrMalformedValue, text)
	}
	if v.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: non-positive %s", ErrMalformedValue, v)
	}
	return v, nil
}
