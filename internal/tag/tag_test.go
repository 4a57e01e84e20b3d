package tag

import (
	"reflect"
	"testing"

	"github.com/dmarche/newsquant/internal/config"
)

func testUniverse() []config.Entity {
	return []config.Entity{
		{Ticker: "AAPL", Industry: "tech", Aliases: []string{"Apple", "iPhone"}},
		{Ticker: "ALL", Industry: "insurance", Aliases: []string{"Allstate"}},
		{Ticker: "", Aliases: []string{"ignored"}},
	}
}

func TestMatchAliasWholeWord(t *testing.T) {
	tagger := New(testUniverse())

	got := tagger.Match("Apple beats expectations as iPhone demand holds up")
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(got), got)
	}
	m := got[0]
	if m.Ticker != "AAPL" || m.Industry != "tech" {
		t.Errorf("wrong entity: %+v", m)
	}
	if m.Count != 2 {
		t.Errorf("expected count 2, got %d", m.Count)
	}
	if !reflect.DeepEqual(m.Matches, []string{"apple", "iphone"}) {
		t.Errorf("wrong hit terms: %v", m.Matches)
	}
}

func TestMatchRejectsSubstrings(t *testing.T) {
	tagger := New(testUniverse())
	if got := tagger.Match("pineapple smartphone sales"); len(got) != 0 {
		t.Errorf("substring should not match: %+v", got)
	}
}

func TestMatchTickerIsCaseSensitive(t *testing.T) {
	tagger := New(testUniverse())

	if got := tagger.Match("shares of AAPL rallied"); len(got) != 1 || got[0].Ticker != "AAPL" {
		t.Errorf("uppercase ticker should match: %+v", got)
	}
	if got := tagger.Match("that's all for today"); len(got) != 0 {
		t.Errorf("lowercase prose must not fire the ALL ticker: %+v", got)
	}
	if got := tagger.Match("ALL raised its dividend"); len(got) != 1 || got[0].Ticker != "ALL" {
		t.Errorf("uppercase ALL should match: %+v", got)
	}
}

func TestMatchAliasIsCaseInsensitive(t *testing.T) {
	tagger := New(testUniverse())
	got := tagger.Match("ALLSTATE reported strong results")
	if len(got) != 1 || got[0].Ticker != "ALL" {
		t.Fatalf("alias should match regardless of case: %+v", got)
	}
}

func TestMatchCountsOccurrences(t *testing.T) {
	tagger := New(testUniverse())
	got := tagger.Match("Apple, Apple and AAPL again: Apple")
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %+v", got)
	}
	if got[0].Count != 4 {
		t.Errorf("expected count 4, got %d", got[0].Count)
	}
}

func TestMatchMultipleEntities(t *testing.T) {
	tagger := New(testUniverse())
	got := tagger.Match("Apple and Allstate both moved today")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	if got := New(testUniverse()).Match(""); got != nil {
		t.Errorf("empty text: %+v", got)
	}
	if got := New(nil).Match("Apple"); got != nil {
		t.Errorf("empty universe: %+v", got)
	}
}
