package callcache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/callcache/internal/util"
)

// Hasher derives a call key from raw arguments. Its result is used verbatim;
// stability and uniqueness are the caller's responsibility.
type Hasher func(args []any) string

// DeriveKey returns the call key for args. With a nil hasher the key is the
// JSON encoding of the argument list: order- and type-sensitive, so 1 and "1"
// produce [1] and ["1"]. Map arguments encode with sorted keys.
//
// Arguments JSON cannot represent (channels, funcs) fall back to a %T:%v
// rendering and never panic. Cyclic values are not supported.
func DeriveKey(args []any, h Hasher) string {
	if h != nil {
		return h(args)
	}
	if args == nil {
		args = []any{}
	}
	var key string
	if b, err := json.Marshal(args); err == nil {
		key = string(b)
	} else {
		key = fallbackKey(args)
	}
	if len(key) > MaxKeyLength {
		return util.ShortHash("sha256", key)
	}
	return key
}

func fallbackKey(args []any) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		if b, err := json.Marshal(a); err == nil {
			sb.Write(b)
			continue
		}
		fmt.Fprintf(&sb, "%T:%v", a, a)
	}
	sb.WriteByte(']')
	return sb.String()
}
