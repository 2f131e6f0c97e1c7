// Package quantity normalizes Kubernetes resource quantity strings into the
// canonical integer units used by the waste engine: millicores for CPU and
// MiB for memory.
package quantity

import (
	"strconv"
	"strings"

	"gopkg.in/inf.v0"
	"k8s.io/apimachinery/pkg/api/resource"
)

// memorySuffixes are the binary suffixes understood for memory. Decimal SI
// suffixes and plain bytes are not.
var memorySuffixes = []string{"Ki", "Mi", "Gi", "Ti"}

var (
	milliPerCore = inf.NewDec(1000, 0)
	bytesPerMiB  = inf.NewDec(1<<20, 0)
	bytesPerGiB  = float64(1 << 30)
)

// ToMillicores converts a CPU quantity into millicores. A trailing "m" means
// a whole number of millicores; without a suffix the value is a decimal core
// count, truncated to whole millicores. The boolean is false for empty,
// unparseable, negative or out of range input.
func ToMillicores(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	milli := strings.HasSuffix(s, "m")
	if !milli && !endsInDigit(s) {
		return 0, false
	}

	q, ok := parse(s)
	if !ok {
		return 0, false
	}

	mc := new(inf.Dec).Mul(q.AsDec(), milliPerCore)
	truncated := new(inf.Dec).Round(mc, 0, inf.RoundDown)
	if milli && truncated.Cmp(mc) != 0 {
		// "1.5m" is not a whole millicore.
		return 0, false
	}

	return unscaled(truncated)
}

// ToMiB converts a memory quantity with a binary suffix (Ki, Mi, Gi, Ti) into
// whole MiB, truncating any fraction. Missing or unknown suffixes are absent,
// not zero.
func ToMiB(s string) (int64, bool) {
	q, ok := parseMemory(s)
	if !ok {
		return 0, false
	}

	return unscaled(new(inf.Dec).QuoRound(q.AsDec(), bytesPerMiB, 0, inf.RoundDown))
}

// ToGiB converts a storage capacity into GiB without truncation. It accepts
// the same suffixes as ToMiB.
func ToGiB(s string) (float64, bool) {
	q, ok := parseMemory(s)
	if !ok {
		return 0, false
	}
	return q.AsApproximateFloat64() / bytesPerGiB, true
}

func parseMemory(s string) (resource.Quantity, bool) {
	s = strings.TrimSpace(s)
	for _, suffix := range memorySuffixes {
		if strings.HasSuffix(s, suffix) {
			return parse(s)
		}
	}
	return resource.Quantity{}, false
}

func parse(s string) (resource.Quantity, bool) {
	q, err := resource.ParseQuantity(s)
	if err != nil || q.Sign() < 0 {
		return resource.Quantity{}, false
	}
	return q, true
}

// unscaled returns an integral decimal as int64. Values beyond int64 are
// absent.
func unscaled(d *inf.Dec) (int64, bool) {
	v, ok := d.Unscaled()
	if !ok || d.Scale() != 0 || v < 0 {
		return 0, false
	}
	return v, true
}

func endsInDigit(s string) bool {
	c := s[len(s)-1]
	return c >= '0' && c <= '9'
}

// FormatMillicores renders millicores the way kubectl prints them, e.g. "250m".
func FormatMillicores(mc int64) string {
	return strconv.FormatInt(mc, 10) + "m"
}

// FormatMiB renders MiB as a binary quantity, e.g. "512Mi".
func FormatMiB(mib int64) string {
	return strconv.FormatInt(mib, 10) + "Mi"
}
