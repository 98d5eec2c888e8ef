package model

import (
	"context"
	"testing"

	"github.com/tripmesh/tripmesh/core"
)

func TestMockModel_CannedResponse(t *testing.T) {
	m := NewMockModel("test", "mock")
	m.AddResponse("weather in Lisbon", "Sunny, 24C")

	req := Request{Contents: []core.Content{core.NewUserText("weather in Lisbon")}}
	respCh, errCh := m.Generate(context.Background(), req)

	var final *Response
	for resp := range respCh {
		if !resp.Partial {
			r := resp
			final = &r
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final == nil || final.Content.Text() != "Sunny, 24C" {
		t.Fatalf("unexpected final response: %+v", final)
	}
}

func TestMockModel_StreamingEmitsPartials(t *testing.T) {
	m := NewMockModel("test", "mock")
	m.AddResponse("hi", "ok")

	req := Request{Contents: []core.Content{core.NewUserText("hi")}, Stream: true}
	respCh, _ := m.Generate(context.Background(), req)

	partials := 0
	finals := 0
	for resp := range respCh {
		if resp.Partial {
			partials++
		} else {
			finals++
		}
	}
	if partials != 2 || finals != 1 {
		t.Errorf("expected 2 partials and 1 final, got %d/%d", partials, finals)
	}
}

func TestGenerateText(t *testing.T) {
	m := NewMockModel("test", "mock")
	m.AddResponse("classify this", `{"intent":"weather"}`)

	out, err := GenerateText(context.Background(), m, Request{
		Contents: []core.Content{core.NewUserText("classify this")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"intent":"weather"}` {
		t.Errorf("unexpected output %q", out)
	}
}

func TestMockModel_NoContents(t *testing.T) {
	m := NewMockModel("test", "mock")
	_, errCh := m.Generate(context.Background(), Request{})
	if err := <-errCh; err == nil {
		t.Fatal("expected error for empty contents")
	}
}
