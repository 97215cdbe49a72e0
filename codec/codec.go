// Package codec turns values into bytes for a callcache Store or a transfer
// channel. Codecs used with snapshot data must decode dynamic values into
// string-keyed maps, slices and scalars so records can be re-typed on
// adoption.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
