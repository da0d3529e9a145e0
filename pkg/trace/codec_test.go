package trace

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeUsesIntegerKeys(t *testing.T) {
	data, err := EncodeEvent(Event{Timestamp: time.Unix(0, 0).UTC(), HandleID: "h", Category: CategoryState,
		StateChange: &StateChangeEvent{NewState: "read-locked"}})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if bytes.Contains(data, []byte("HandleID")) {
		t.Error("encoded event uses field names as keys")
	}
}

func TestDecodeKeepsPayload(t *testing.T) {
	code := 96
	in := Event{
		Timestamp: time.Now(),
		HandleID:  "ctrl",
		Category:  CategoryError,
		Error:     &ErrorEventData{Domain: "controller", Message: "gone", Code: &code, CodeName: "NVME_ERR_CTRL_GONE", Errno: 6},
	}
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if out.Error == nil || out.Error.Code == nil || *out.Error.Code != 96 {
		t.Fatalf("Error payload lost: %+v", out.Error)
	}
	if out.Call != nil || out.Lifecycle != nil {
		t.Error("unexpected payloads after decode")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for malformed CBOR")
	}
}
