package streams

import (
	"encoding/binary"
	"testing"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

func buildExceptionPayload(threadID, code uint32, address uint64, params []uint64) []byte {
	data := make([]byte, 168)
	binary.LittleEndian.PutUint32(data[0:4], threadID)
	binary.LittleEndian.PutUint32(data[8:12], code)
	binary.LittleEndian.PutUint64(data[24:32], address)
	binary.LittleEndian.PutUint32(data[32:36], uint32(len(params)))
	for i, p := range params {
		binary.LittleEndian.PutUint64(data[36+i*8:44+i*8], p)
	}
	return data
}

func TestAccessViolationDetailsMatchesExpectedSentence(t *testing.T) {
	payload := buildExceptionPayload(1, 0xC0000005, 0x0000000140001234, []uint64{0, 0xDEADBEEF})
	blob := dumpio.NewBlob(payload)
	ex, ok := DecodeException(blob, 0)
	if !ok {
		t.Fatalf("expected Exception to decode")
	}
	msg, ok := ex.AccessViolationDetails()
	if !ok {
		t.Fatalf("expected an access-violation sentence")
	}
	want := "The instruction at 0x0000000140001234 tried reading from address 0x00000000DEADBEEF"
	if msg != want {
		t.Fatalf("got %q, want %q", msg, want)
	}
}

func TestAccessViolationDetailsAbsentForOtherCodes(t *testing.T) {
	payload := buildExceptionPayload(1, 0xC00000FD, 0x1000, []uint64{0, 0})
	blob := dumpio.NewBlob(payload)
	ex, ok := DecodeException(blob, 0)
	if !ok {
		t.Fatalf("expected Exception to decode")
	}
	if _, ok := ex.AccessViolationDetails(); ok {
		t.Fatalf("did not expect an access-violation sentence for a non-AV code")
	}
}

func TestDecodeExceptionCapsParametersAt15(t *testing.T) {
	params := make([]uint64, 20)
	for i := range params {
		params[i] = uint64(i)
	}
	// Only room for 15 params in the fixed payload; the on-disk count then
	// claims 20, so the decoder has to cap it rather than trust it.
	payload := buildExceptionPayload(1, 0xC0000005, 0x1000, params[:15])
	binary.LittleEndian.PutUint32(payload[32:36], uint32(len(params)))
	blob := dumpio.NewBlob(payload)
	ex, ok := DecodeException(blob, 0)
	if !ok {
		t.Fatalf("expected Exception to decode")
	}
	if len(ex.Parameters) != MaxExceptionParameters {
		t.Fatalf("got %d parameters, want %d", len(ex.Parameters), MaxExceptionParameters)
	}
}
