package util

import "testing"

func TestTokenize(t *testing.T) {
	got := Tokenize("What's the weather in Lisbon?")
	want := []string{"s", "weather", "lisbon"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOverlapRatio(t *testing.T) {
	if r := OverlapRatio("weather forecast Lisbon", "Lisbon weather today"); r < 0.6 {
		t.Errorf("related messages should overlap strongly, got %f", r)
	}
	if r := OverlapRatio("museums in Tokyo", "pack for skiing in Norway"); r > 0.2 {
		t.Errorf("unrelated messages should barely overlap, got %f", r)
	}
	if r := OverlapRatio("", "anything"); r != 0 {
		t.Errorf("empty input should yield 0, got %f", r)
	}
}

func TestRenderPrompt(t *testing.T) {
	out, err := RenderPrompt("Trip to {{.city}} in {{default \"any season\" .season}}", map[string]string{"city": "Lisbon"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Trip to Lisbon in any season" {
		t.Errorf("unexpected render: %q", out)
	}

	out, err = RenderPrompt("no markers", nil)
	if err != nil || out != "no markers" {
		t.Errorf("fast path failed: %q %v", out, err)
	}

	// nested fallback across two missing keys
	out, err = RenderPrompt(`{{default (default "sometime" .season) .month}}`, map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "sometime" {
		t.Errorf("nested default failed: %q", out)
	}
}
