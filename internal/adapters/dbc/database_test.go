package dbc

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/canpulse/canpulse/internal/domain"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dbc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func loadFixture(t *testing.T) *Database {
	t.Helper()
	db, err := Load(writeFixture(t, fixtureDBC))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return db
}

func TestLoad(t *testing.T) {
	db := loadFixture(t)

	if db.Len() != 3 {
		t.Errorf("Len() = %d, want 3", db.Len())
	}
	if _, ok := db.MessageByID(962); !ok {
		t.Error("message 962 missing")
	}
	if _, ok := db.MessageByID(0x999); ok {
		t.Error("unexpected message 0x999")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.dbc")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDatabase_EncodeMultiplexed(t *testing.T) {
	db := loadFixture(t)

	data, err := db.Encode(962, domain.SignalValues{
		"VCLEFT_switchStatusIndex":  1,
		"VCLEFT_swcLeftPressed":     1,
		"VCLEFT_swcLeftScrollTicks": -1,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// selector=1 at bits 0-1, pressed=1 at bits 2-3, ticks=-1 as a 6-bit
	// two's complement field filling byte 1. The inactive right-tick
	// signal stays zero.
	want := []byte{0x05, 0x3F, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(data, want) {
		t.Errorf("Encode = % x, want % x", data, want)
	}
}

func TestDatabase_DecodeMultiplexed(t *testing.T) {
	db := loadFixture(t)

	values, err := db.Decode(962, []byte{0x05, 0x3F, 0x15, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got := values["VCLEFT_switchStatusIndex"]; got != 1 {
		t.Errorf("selector = %d, want 1", got)
	}
	if got := values["VCLEFT_swcLeftPressed"]; got != 1 {
		t.Errorf("pressed = %d, want 1", got)
	}
	if got := values["VCLEFT_swcLeftScrollTicks"]; got != -1 {
		t.Errorf("left ticks = %d, want -1", got)
	}
	// Signals inactive under selector 1 must not appear at all.
	if _, ok := values["VCLEFT_swcRightScrollTicks"]; ok {
		t.Error("inactive right ticks decoded")
	}
}

func TestDatabase_RoundTrip(t *testing.T) {
	db := loadFixture(t)

	tests := []struct {
		name   string
		id     uint32
		values domain.SignalValues
	}{
		{
			name: "mux selector 1",
			id:   962,
			values: domain.SignalValues{
				"VCLEFT_switchStatusIndex":  1,
				"VCLEFT_swcLeftPressed":     2,
				"VCLEFT_swcLeftScrollTicks": -17,
			},
		},
		{
			name: "mux selector 2",
			id:   962,
			values: domain.SignalValues{
				"VCLEFT_switchStatusIndex":   2,
				"VCLEFT_swcLeftPressed":      0,
				"VCLEFT_swcRightScrollTicks": 31,
			},
		},
		{
			name: "motorola signed scaled",
			id:   256,
			values: domain.SignalValues{
				"CoolantTemp": -10,
				"PumpDuty":    515,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := db.Encode(tt.id, tt.values)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := db.Decode(tt.id, data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			for name, want := range tt.values {
				if got := decoded[name]; got != want {
					t.Errorf("%s = %d, want %d", name, got, want)
				}
			}
		})
	}
}

func TestDatabase_DecodeShortPayload(t *testing.T) {
	db := loadFixture(t)

	_, err := db.Decode(962, []byte{0x01, 0x02})
	var structural *domain.StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("err = %v, want *StructuralError", err)
	}
	if structural.ID != 962 {
		t.Errorf("ID = %d, want 962", structural.ID)
	}
	if len(structural.Data) != 2 {
		t.Errorf("len(Data) = %d, want 2", len(structural.Data))
	}
}

func TestDatabase_DecodeUnmappedSelector(t *testing.T) {
	db := loadFixture(t)

	// Selector 3 activates no declared multiplexed signal.
	_, err := db.Decode(962, []byte{0x03, 0, 0, 0, 0, 0, 0, 0})
	var malformed *domain.MalformedValueError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want *MalformedValueError", err)
	}
	if malformed.Value != 3 {
		t.Errorf("Value = %d, want 3", malformed.Value)
	}
	if malformed.Signal != "VCLEFT_switchStatusIndex" {
		t.Errorf("Signal = %q, want VCLEFT_switchStatusIndex", malformed.Signal)
	}
}

func TestDatabase_DecodeUnknownID(t *testing.T) {
	db := loadFixture(t)

	if _, err := db.Decode(0x999, make([]byte, 8)); !errors.Is(err, domain.ErrUnknownMessage) {
		t.Errorf("err = %v, want ErrUnknownMessage", err)
	}
}

func TestDatabase_EncodeRangeError(t *testing.T) {
	db := loadFixture(t)

	// 40 does not fit a 6-bit signed field.
	_, err := db.Encode(962, domain.SignalValues{
		"VCLEFT_switchStatusIndex":  1,
		"VCLEFT_swcLeftPressed":     0,
		"VCLEFT_swcLeftScrollTicks": 40,
	})
	var rangeErr *domain.RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("err = %v, want *RangeError", err)
	}
	if rangeErr.Signal != "VCLEFT_swcLeftScrollTicks" {
		t.Errorf("Signal = %q", rangeErr.Signal)
	}
	if rangeErr.Width != 6 {
		t.Errorf("Width = %d, want 6", rangeErr.Width)
	}
}

func TestDatabase_EncodeMissingSignal(t *testing.T) {
	db := loadFixture(t)

	_, err := db.Encode(962, domain.SignalValues{
		"VCLEFT_switchStatusIndex": 1,
	})
	if err == nil {
		t.Fatal("expected error for missing active signal")
	}
}

func TestDatabase_EncodeMissingMultiplexer(t *testing.T) {
	db := loadFixture(t)

	_, err := db.Encode(962, domain.SignalValues{
		"VCLEFT_swcLeftPressed": 1,
	})
	if err == nil {
		t.Fatal("expected error for missing multiplexer value")
	}
}

func TestDatabase_Reload(t *testing.T) {
	path := writeFixture(t, fixtureDBC)
	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	updated := fixtureDBC + `
BO_ 500 Added: 1 VehicleBus
 SG_ Flag : 0|1@1+ (1,0) [0|1] ""  Receiver
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}
	if err := db.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if db.Len() != 4 {
		t.Errorf("Len() = %d, want 4", db.Len())
	}
	if _, ok := db.MessageByID(500); !ok {
		t.Error("added message missing after reload")
	}
}

func TestDatabase_ReloadRejectsOverrunningLayout(t *testing.T) {
	path := writeFixture(t, fixtureDBC)
	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// A hot-swapped file whose signal runs past the declared payload must
	// be rejected at reload, never reach the encoder.
	overrun := `BO_ 100 Overrun: 1 VehicleBus
 SG_ Tick : 8|8@1- (1,0) [-128|127] ""  Receiver
`
	if err := os.WriteFile(path, []byte(overrun), 0o644); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}
	if err := db.Reload(); err == nil {
		t.Fatal("Reload accepted an overrunning signal layout")
	}

	// Previous descriptors stay live and encodable.
	if db.Len() != 3 {
		t.Errorf("Len() = %d after rejected reload, want 3", db.Len())
	}
	if _, err := db.Encode(962, domain.SignalValues{
		"VCLEFT_switchStatusIndex":  1,
		"VCLEFT_swcLeftPressed":     0,
		"VCLEFT_swcLeftScrollTicks": -1,
	}); err != nil {
		t.Errorf("Encode after rejected reload: %v", err)
	}
}

func TestDatabase_ReloadFailureKeepsDescriptors(t *testing.T) {
	path := writeFixture(t, fixtureDBC)
	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove fixture: %v", err)
	}
	if err := db.Reload(); err == nil {
		t.Fatal("expected reload error for removed file")
	}
	if db.Len() != 3 {
		t.Errorf("Len() = %d after failed reload, want 3", db.Len())
	}
}
