package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	OrderNumberPrefix = "FP"
	MaxOrderSequence  = 9999
)

var OrderNumberPattern = regexp.MustCompile(`^FP-\d{8}-\d{4}$`)

var ErrMalformedOrderNumber = errors.New("malformed order number")

// OrderNumberDatePrefix returns "FP-YYYYMMDD" for the UTC date of t.
func OrderNumberDatePrefix(t time.Time) string {
	return OrderNumberPrefix + "-" + t.UTC().Format("20060102")
}

func FormatOrderNumber(t time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d", OrderNumberDatePrefix(t), seq)
}

// ParseOrderSequence extracts the trailing sequence of an order number.
func ParseOrderSequence(orderNumber string) (int, error) {
	if !OrderNumberPattern.MatchString(orderNumber) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedOrderNumber, orderNumber)
	}
	parts := strings.Split(orderNumber, "-")
	seq, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedOrderNumber, orderNumber)
	}
	return seq, nil
}
