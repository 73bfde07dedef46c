package persona

import "testing"

func TestLookupKnownKeys(t *testing.T) {
	for _, key := range Keys() {
		instruction, err := Lookup(key)
		if err != nil {
			t.Errorf("Lookup(%s) failed: %v", key, err)
		}
		if instruction == "" {
			t.Errorf("Lookup(%s) returned empty instruction", key)
		}
	}
}

func TestLookupUnknownKey(t *testing.T) {
	if _, err := Lookup(Key("pirate")); err == nil {
		t.Error("Unknown key must be rejected, not defaulted")
	}
	if Valid(Key("pirate")) {
		t.Error("Valid(pirate) = true")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if !Valid(Default) {
		t.Errorf("Default key %s is not configured", Default)
	}
}

func TestKeysStableOrder(t *testing.T) {
	first := Keys()
	second := Keys()
	if len(first) != len(second) {
		t.Fatal("Keys() length changed between calls")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Keys() order changed at %d: %s vs %s", i, first[i], second[i])
		}
	}
}
