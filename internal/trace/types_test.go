package trace

import "testing"

func TestDefaultEnricherTagsLowAddressStoreAsFlash(t *testing.T) {
	e := NewEvent(0x1000, string(Store), "store", "value=0x1")
	DefaultEnricher(e)
	if !e.Tags.Has(Flash) {
		t.Fatal("expected a store below the flash boundary to pick up the flash tag")
	}
}

func TestDefaultEnricherLeavesHighAddressStoreUntagged(t *testing.T) {
	e := NewEvent(0x02000000, string(Store), "store", "value=0x1")
	DefaultEnricher(e)
	if e.Tags.Has(Flash) {
		t.Fatal("a store above the flash boundary should not be tagged flash")
	}
}

func TestDefaultEnricherMarksFillAsBulk(t *testing.T) {
	e := NewEvent(0x2000000, string(Fill), "fill_words", "pattern=0x0 count=64")
	DefaultEnricher(e)
	if !e.Tags.Has(Bulk) {
		t.Fatal("expected a fill event to be tagged bulk")
	}
}

func TestDefaultEnricherAnnotatesSkip(t *testing.T) {
	e := NewEvent(0x04002088, string(Skip), "store", "breaks bitbang backdoor")
	DefaultEnricher(e)
	if e.Annotations.Get("suppressed") != "true" {
		t.Fatal("expected a skip event to be annotated suppressed=true")
	}
}

func TestTagsAddIsIdempotent(t *testing.T) {
	var tags Tags
	tags.Add(Store)
	tags.Add(Store)
	if len(tags) != 1 {
		t.Fatalf("len(tags) = %d, want 1", len(tags))
	}
}

func TestPrimaryTagRendersWithHash(t *testing.T) {
	e := NewEvent(0, string(Load), "load", "")
	if e.PrimaryTag() != "#load" {
		t.Fatalf("PrimaryTag() = %q, want %q", e.PrimaryTag(), "#load")
	}
}
