package svsim

import "testing"

func TestCache_resolveAndMemoize(t *testing.T) {
	c := NewCache()
	m1, err := c.Resolve("nand_gate", "testdata")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	m2, err := c.Resolve("nand_gate", "testdata")
	if err != nil {
		t.Fatalf("Resolve (second time): %v", err)
	}
	if m1 != m2 {
		t.Errorf("Resolve returned different *Module pointers for the same module, want memoized identity")
	}
}

func TestCache_resolveMissingModule(t *testing.T) {
	c := NewCache()
	_, err := c.Resolve("does_not_exist", "testdata")
	if err == nil {
		t.Fatalf("expected an error resolving a nonexistent module")
	}
	svErr, ok := err.(*Error)
	if !ok || svErr.Kind != KindModuleNotFound {
		t.Errorf("err = %v, want a *Error with KindModuleNotFound", err)
	}
}

func TestCache_romPrimitiveDetection(t *testing.T) {
	c := NewCache()
	rom, err := c.Resolve("rom_deadbeef", "testdata")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	isRom, dataFile := c.romInfo(rom)
	if !isRom {
		t.Fatalf("rom_deadbeef not detected as a ROM primitive")
	}
	if dataFile == "" {
		t.Errorf("no data file located for rom_deadbeef")
	}
}

func TestCache_loadRomData(t *testing.T) {
	c := NewCache()
	re, err := c.LoadRom("rom_deadbeef", "testdata")
	if err != nil {
		t.Fatalf("LoadRom: %v", err)
	}
	want := []uint64{0xDE, 0xAD, 0xBE, 0xEF}
	for addr, w := range want {
		if got := re.Read(uint64(addr)); got.Bits != w {
			t.Errorf("Read(%d) = %#x, want %#x", addr, got.Bits, w)
		}
	}
}

func TestCache_gateCount(t *testing.T) {
	c := NewCache()
	// full_adder instantiates half_adder twice, each of which is pure
	// combinational logic with no nand_gate leaves, so its gate count is 0;
	// nand_gate itself should report 1.
	n, err := c.GateCount("nand_gate", "testdata")
	if err != nil {
		t.Fatalf("GateCount(nand_gate): %v", err)
	}
	if n != 1 {
		t.Errorf("GateCount(nand_gate) = %d, want 1", n)
	}
	n, err = c.GateCount("full_adder", "testdata")
	if err != nil {
		t.Fatalf("GateCount(full_adder): %v", err)
	}
	if n != 0 {
		t.Errorf("GateCount(full_adder) = %d, want 0 (no nand_gate leaves)", n)
	}
}

func TestCache_clearForcesReparse(t *testing.T) {
	c := NewCache()
	m1, err := c.Resolve("nand_gate", "testdata")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	c.Clear()
	m2, err := c.Resolve("nand_gate", "testdata")
	if err != nil {
		t.Fatalf("Resolve after Clear: %v", err)
	}
	if m1 == m2 {
		t.Errorf("Resolve after Clear returned the same *Module pointer, want a fresh parse")
	}
}
