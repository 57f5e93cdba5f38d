package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// signExcludedFields are request fields the gateway leaves out of token
// computation: the token itself plus structured payloads. Kept in one place so
// producer and verifier can never disagree about what is signed.
var signExcludedFields = map[string]struct{}{
	"Token":   {},
	"Shops":   {},
	"Receipt": {},
	"DATA":    {},
}

// Sign computes the request authentication token: excluded fields are
// dropped, the shared secret is added under Password, values are concatenated
// in lexicographic key order and hashed with SHA-256. The result is the
// lowercase hex digest the gateway recomputes on its side.
func Sign(params map[string]any, secret string) string {
	keys := make([]string, 0, len(params)+1)
	for k := range params {
		if _, excluded := signExcludedFields[k]; excluded {
			continue
		}
		if k == "Password" {
			// the secret always wins over a caller-supplied field
			continue
		}
		keys = append(keys, k)
	}
	keys = append(keys, "Password")
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		if k == "Password" {
			h.Write([]byte(secret))
			continue
		}
		h.Write([]byte(stringifyValue(params[k])))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// stringifyValue renders a scalar the way the gateway expects it inside the
// token concatenation. Floats use the shortest exact form, so a JSON-decoded
// integer amount round-trips without a fractional part.
func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
