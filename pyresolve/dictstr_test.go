package pyresolve

import (
	"encoding/binary"
	"testing"

	"github.com/zhigao/pymortem/corefile"
)

// buildV3DictLayout lays out, in one segment, a type's dict (V3 combined
// keys table shape: capacity at keys+W, triples at keys+4W, each triple
// (hash, key, value)) holding a single "__base__" entry whose key is a
// str object of the current (post-3.3) layout: length at 2W, character
// data at 6W.
func buildV3DictLayout(order binary.ByteOrder) (addrMap *corefile.AddressMap, dictForTypeType uint64) {
	const base = 0x2000
	data := make([]byte, 0x300)

	dictForTypeType = base
	dictKeysAddr := uint64(base + 0x100)
	strAddr := uint64(base + 0x200)

	order.PutUint64(data[0x18:0x20], dictKeysAddr) // dictForTypeType + 3W (keysInDict)
	order.PutUint64(data[0x100+8:0x100+16], 1)     // dictKeys + W (capacity) = 1

	tripleOff := 0x100 + 0x20                                // dictKeys + 4W (triplesInDictKeys)
	order.PutUint64(data[tripleOff:tripleOff+8], 0xaaaa)     // hash
	order.PutUint64(data[tripleOff+8:tripleOff+16], strAddr) // key
	order.PutUint64(data[tripleOff+16:tripleOff+24], 0xbbbb) // value

	order.PutUint64(data[0x200+8:0x200+16], 0xcccc) // str object's ob_type
	order.PutUint64(data[0x200+16:0x200+24], 8)     // length("__base__") == 8
	copy(data[0x200+48:0x200+48+9], []byte("__base__\x00"))

	addrMap = corefile.NewAddressMap(8, order)
	if err := addrMap.AddSegment(base, data, true, true); err != nil {
		panic(err)
	}
	return addrMap, dictForTypeType
}

func TestCalculateOffsetsForDictAndStrV3(t *testing.T) {
	addrMap, dictForTypeType := buildV3DictLayout(binary.LittleEndian)
	r := New(nil, addrMap, nil, corefile.NewTypeDirectory())
	r.w = 8
	r.order = binary.LittleEndian
	r.version = VersionUnknown // exercise the trial-and-validate fallback

	if !r.calculateOffsetsForDictAndStr(dictForTypeType) {
		t.Fatalf("calculateOffsetsForDictAndStr failed, want success")
	}
	if r.keysInDict != r.python3KeysInDictOffset() {
		t.Errorf("keysInDict=0x%x, want the V3 offset 0x%x", r.keysInDict, r.python3KeysInDictOffset())
	}
	if r.triplesInDictKeys != r.python3TriplesInDictKeys() {
		t.Errorf("triplesInDictKeys=0x%x, want 0x%x", r.triplesInDictKeys, r.python3TriplesInDictKeys())
	}
	if r.strType != 0xcccc {
		t.Errorf("strType=0x%x, want 0xcccc", r.strType)
	}
	if !r.typeDir.HasType(0xcccc) || r.typeDir.GetTypeName(0xcccc) != "str" {
		t.Errorf("str type was not registered under name \"str\"")
	}
}

func TestCheckDictAndStrOffsetsRejectsMisalignedKeys(t *testing.T) {
	order := binary.LittleEndian
	data := make([]byte, 0x20)
	order.PutUint64(data[0x18:0x20], 0x2101) // keysInDict field holds a misaligned pointer

	addrMap := corefile.NewAddressMap(8, order)
	const dictForTypeType = 0x9000
	if err := addrMap.AddSegment(dictForTypeType, data, true, true); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}

	r := New(nil, addrMap, nil, corefile.NewTypeDirectory())
	r.w = 8
	r.order = order
	r.keysInDict = 3 * r.w
	r.triplesInDictKeys = 4 * r.w
	r.cstringInStr = 6 * r.w

	if r.checkDictAndStrOffsets(dictForTypeType) {
		t.Errorf("checkDictAndStrOffsets accepted a misaligned dict-keys pointer")
	}
}
