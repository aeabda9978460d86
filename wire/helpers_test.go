package wire

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// mustDecodeRaw decodes an encoded envelope into its raw integer-keyed map
// so tests can tamper with individual fields.
func mustDecodeRaw(t *testing.T, data []byte) map[int]interface{} {
	t.Helper()
	var m map[int]interface{}
	if err := cbor.Unmarshal(data, &m); err != nil {
		t.Fatalf("raw decode failed: %v", err)
	}
	return m
}

func mustEncodeRaw(t *testing.T, m map[int]interface{}) []byte {
	t.Helper()
	data, err := cbor.Marshal(m)
	if err != nil {
		t.Fatalf("raw encode failed: %v", err)
	}
	return data
}
