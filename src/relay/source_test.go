package relay

import "testing"

func TestPeripheralSources(t *testing.T) {
	for i := 1; i <= MaxPeripherals; i++ {
		src := Peripheral(uint8(i))
		if !src.Valid() {
			t.Fatalf("peripheral %d should be valid", i)
		}
		if !src.IsPeripheral() {
			t.Fatalf("peripheral %d should report IsPeripheral", i)
		}
		if src == Central || src == Self {
			t.Fatalf("peripheral %d collides with a reserved source", i)
		}
	}
}

func TestSourceBounds(t *testing.T) {
	if !Self.Valid() {
		t.Fatal("Self is within the valid source range")
	}
	if Self.IsPeripheral() {
		t.Fatal("Self is not a peripheral index")
	}
	if !Central.Valid() {
		t.Fatal("Central should be valid")
	}
	if Central.IsPeripheral() {
		t.Fatal("Central is not a peripheral")
	}
	if Source(MaxPeripherals + 1).Valid() {
		t.Fatalf("source %d exceeds the peripheral bound", MaxPeripherals+1)
	}
}

func TestSourceString(t *testing.T) {
	if Self.String() != "self" {
		t.Fatalf("got %q", Self.String())
	}
	if Central.String() != "central" {
		t.Fatalf("got %q", Central.String())
	}
	if Peripheral(3).String() != "peripheral-3" {
		t.Fatalf("got %q", Peripheral(3).String())
	}
}
