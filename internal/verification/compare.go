package verification

import (
	"fmt"
	"reflect"
	"sort"

	"stellar-wallet-core/internal/domain"
)

// ExcludedFields are never compared; the two sources format them differently.
var ExcludedFields = map[string]bool{
	domain.FieldCreatedAt: true,
}

// FieldDivergence represents a mismatch between the ledger API and the indexer.
type FieldDivergence struct {
	Field    string      `json:"field"`    // dotted path, e.g. "asset.code" or "path[1]"
	Expected interface{} `json:"expected"` // ledger API value, nil when missing
	Actual   interface{} `json:"actual"`   // indexer value, nil when missing
}

// CompareRecords structurally compares two normalized records.
// Arrays compare element-wise by index, nested maps member by member and scalars
// by equality. A field present on only one side is a divergence.
func CompareRecords(expected, actual map[string]interface{}) []FieldDivergence {
	var divergences []FieldDivergence
	compareMaps("", expected, actual, &divergences)
	return divergences
}

func compareMaps(prefix string, expected, actual map[string]interface{}, out *[]FieldDivergence) {
	keys := make(map[string]struct{}, len(expected)+len(actual))
	for k := range expected {
		keys[k] = struct{}{}
	}
	for k := range actual {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		if !ExcludedFields[k] {
			sorted = append(sorted, k)
		}
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		e, eok := expected[k]
		a, aok := actual[k]
		if !eok || !aok {
			*out = append(*out, FieldDivergence{Field: path, Expected: e, Actual: a})
			continue
		}
		compareValues(path, e, a, out)
	}
}

func compareValues(path string, expected, actual interface{}, out *[]FieldDivergence) {
	switch e := expected.(type) {
	case map[string]interface{}:
		a, ok := actual.(map[string]interface{})
		if !ok {
			*out = append(*out, FieldDivergence{Field: path, Expected: expected, Actual: actual})
			return
		}
		compareMaps(path, e, a, out)

	case []interface{}:
		a, ok := actual.([]interface{})
		if !ok {
			*out = append(*out, FieldDivergence{Field: path, Expected: expected, Actual: actual})
			return
		}
		n := len(e)
		if len(a) > n {
			n = len(a)
		}
		for i := 0; i < n; i++ {
			p := fmt.Sprintf("%s[%d]", path, i)
			if i >= len(e) || i >= len(a) {
				*out = append(*out, FieldDivergence{Field: p, Expected: index(e, i), Actual: index(a, i)})
				continue
			}
			compareValues(p, e[i], a[i], out)
		}

	default:
		if !scalarEquals(expected, actual) {
			*out = append(*out, FieldDivergence{Field: path, Expected: expected, Actual: actual})
		}
	}
}

func index(s []interface{}, i int) interface{} {
	if i < len(s) {
		return s[i]
	}
	return nil
}

// scalarEquals compares scalars. Numbers compare by value regardless of their Go type,
// since decoded JSON yields float64 while normalized fields may carry integers.
func scalarEquals(a, b interface{}) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
