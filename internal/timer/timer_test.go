package timer

import "testing"

func TestTimer_DIV_IncrementsEvery256Cycles(t *testing.T) {
	tm := New(nil)
	tm.Tick(255)
	if got := tm.Read(0xFF04); got != 0x00 {
		t.Fatalf("DIV got %02X want 00 before 256 cycles", got)
	}
	tm.Tick(1)
	if got := tm.Read(0xFF04); got != 0x01 {
		t.Fatalf("DIV got %02X want 01 after 256 cycles", got)
	}
}

func TestTimer_DIVWriteResetsToZero(t *testing.T) {
	tm := New(nil)
	tm.Tick(1000)
	if got := tm.Read(0xFF04); got == 0x00 {
		t.Fatalf("DIV should have advanced past 0")
	}
	tm.Write(0xFF04, 0xFF) // any write resets DIV regardless of value
	if got := tm.Read(0xFF04); got != 0x00 {
		t.Fatalf("DIV after write got %02X want 00", got)
	}
}

func TestTimer_TIMA_DisabledByTACBit2(t *testing.T) {
	tm := New(nil)
	tm.Write(0xFF07, 0x01) // bit2 clear: disabled, would-be period 16
	tm.Write(0xFF05, 0x10)
	tm.Tick(10000)
	if got := tm.Read(0xFF05); got != 0x10 {
		t.Fatalf("TIMA advanced while disabled: got %02X want 10", got)
	}
}

func TestTimer_TIMA_IncrementsAtConfiguredPeriod(t *testing.T) {
	tm := New(nil)
	tm.Write(0xFF07, 0x05) // enabled, period 16
	tm.Write(0xFF05, 0x00)
	tm.Tick(15)
	if got := tm.Read(0xFF05); got != 0x00 {
		t.Fatalf("TIMA got %02X want 00 before period elapses", got)
	}
	tm.Tick(1)
	if got := tm.Read(0xFF05); got != 0x01 {
		t.Fatalf("TIMA got %02X want 01 after period elapses", got)
	}
}

func TestTimer_TIMAOverflow_ReloadsAfterFourCyclesAndRequestsInterrupt(t *testing.T) {
	requested := 0
	tm := New(func() { requested++ })
	tm.Write(0xFF07, 0x05) // period 16
	tm.Write(0xFF06, 0x7A)
	tm.Write(0xFF05, 0xFF)

	tm.Tick(16) // overflow: TIMA -> 0x00, reload pending
	if got := tm.Read(0xFF05); got != 0x00 {
		t.Fatalf("TIMA got %02X want 00 immediately after overflow", got)
	}
	if requested != 0 {
		t.Fatalf("interrupt requested before reload delay elapsed")
	}

	tm.Tick(3)
	if got := tm.Read(0xFF05); got != 0x00 || requested != 0 {
		t.Fatalf("TIMA/interrupt fired early: TIMA=%02X requested=%d", got, requested)
	}

	tm.Tick(1)
	if got := tm.Read(0xFF05); got != 0x7A {
		t.Fatalf("TIMA got %02X want 7A after reload", got)
	}
	if requested != 1 {
		t.Fatalf("interrupt requested %d times, want 1", requested)
	}
}

func TestTimer_TIMAWriteDuringReloadDelayCancelsReload(t *testing.T) {
	requested := 0
	tm := New(func() { requested++ })
	tm.Write(0xFF07, 0x05)
	tm.Write(0xFF06, 0x99)
	tm.Write(0xFF05, 0xFF)
	tm.Tick(16) // overflow, reload pending

	tm.Write(0xFF05, 0x40) // cancels the pending reload
	for i := 0; i < 8; i++ {
		tm.Tick(1)
	}
	if got := tm.Read(0xFF05); got != 0x40 {
		t.Fatalf("TIMA got %02X want 40 (cancelled reload)", got)
	}
	if requested != 0 {
		t.Fatalf("interrupt requested despite cancellation")
	}
}

func TestTimer_SaveStateLoadState_RoundTrips(t *testing.T) {
	tm := New(nil)
	tm.Write(0xFF07, 0x06)
	tm.Write(0xFF06, 0x55)
	tm.Write(0xFF05, 0x33)
	tm.Tick(123)

	data := tm.SaveState()

	other := New(nil)
	other.LoadState(data)

	if other.Read(0xFF04) != tm.Read(0xFF04) || other.Read(0xFF05) != tm.Read(0xFF05) ||
		other.Read(0xFF06) != tm.Read(0xFF06) || other.Read(0xFF07) != tm.Read(0xFF07) {
		t.Fatalf("timer state did not round-trip through SaveState/LoadState")
	}
}
