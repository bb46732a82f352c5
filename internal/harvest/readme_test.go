package harvest

import (
	"testing"
)

const coinFlipReadme = `# Coin Flip

Flip a coin any time you need to settle a dispute.

## Description

Flips a virtual coin and announces heads or tails.

## Examples

 - "Hey Mycroft, flip a coin"
 - "Hey Mycroft, what was the result" <<< Repeats the last flip

## Credits

Mycroft AI
`

func TestExtractSections(t *testing.T) {
	sections := ExtractSections(coinFlipReadme)

	if len(sections) == 0 {
		t.Fatal("expected sections")
	}

	// The first section is the first heading, not the prelude
	if sections[0].Title != "Coin Flip" {
		t.Errorf("first section = %q, want 'Coin Flip'", sections[0].Title)
	}

	body, ok := sections.Get("Description")
	if !ok {
		t.Fatal("expected a Description section")
	}
	if body != "Flips a virtual coin and announces heads or tails." {
		t.Errorf("Description body = %q", body)
	}

	// The prelude is kept under an empty title, ordered last
	if sections[len(sections)-1].Title != "" {
		t.Errorf("last section = %q, want prelude", sections[len(sections)-1].Title)
	}
}

func TestExtractSections_NoHeadings(t *testing.T) {
	sections := ExtractSections("just some text\nwith no headings")

	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Title != "" {
		t.Errorf("expected prelude section, got %q", sections[0].Title)
	}
	if sections[0].Body != "just some text\nwith no headings" {
		t.Errorf("prelude body = %q", sections[0].Body)
	}
}

func TestFindSection(t *testing.T) {
	sections := ExtractSections(coinFlipReadme)

	if body := FindSection("description", sections, 0.5); body == "" {
		t.Error("expected case-insensitive match on Description")
	}

	if body := FindSection("credits", sections, 0.9); body != "Mycroft AI" {
		t.Errorf("credits = %q, want 'Mycroft AI'", body)
	}

	if body := FindSection("nonexistent heading", sections, 0.9); body != "" {
		t.Errorf("expected no match below threshold, got %q", body)
	}
}

func TestFindExamples(t *testing.T) {
	sections := ExtractSections(coinFlipReadme)
	examples := FindExamples(sections)

	if len(examples) != 2 {
		t.Fatalf("expected 2 examples, got %d: %v", len(examples), examples)
	}
	if examples[0] != "Flip a coin." {
		t.Errorf("examples[0] = %q, want 'Flip a coin.'", examples[0])
	}
	if examples[1] != "What was the result?" {
		t.Errorf("examples[1] = %q, want 'What was the result?'", examples[1])
	}
}

func TestParseExample(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"wake word with comma", `"Hey Mycroft, flip a coin"`, "Flip a coin."},
		{"bare wake word", `"Mycroft, how are you"`, "How are you."},
		{"question word", `"hey mycroft, what is this"`, "What is this?"},
		{"existing question mark", `"Hey Mycroft, where are we?"`, "Where are we?"},
		{"trailing annotation", ` "Hey Mycroft, perform test" <<< Does a test`, "Perform test."},
		{"no wake word", `tell me a joke`, "Tell me a joke."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseExample(tt.raw); got != tt.want {
				t.Errorf("ParseExample(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFindTitleInfo(t *testing.T) {
	// First heading resembles the skill name
	sections := ExtractSections(coinFlipReadme)
	title, shortDesc := FindTitleInfo(sections, "coin-flip")
	if title != "Coin Flip" {
		t.Errorf("title = %q, want 'Coin Flip'", title)
	}
	if shortDesc == "" {
		t.Error("expected short description from the title section")
	}

	// First heading is unrelated, fall back to the normalized skill name
	other := ExtractSections("intro text\n\n# Installation\n\nRun msm install.")
	title, _ = FindTitleInfo(other, "weather-skill")
	if title != "Weather Skill" {
		t.Errorf("title = %q, want 'Weather Skill'", title)
	}
}

func TestFormatSentence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"this is a test", "This is a test."},
		{"already done.", "Already done."},
		{"a question?", "A question?"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatSentence(tt.in); got != tt.want {
			t.Errorf("FormatSentence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCapitalize(t *testing.T) {
	if got := Capitalize("mycroft AI"); got != "Mycroft AI" {
		t.Errorf("Capitalize preserved case wrong: %q", got)
	}
	if got := Capitalize(""); got != "" {
		t.Errorf("Capitalize(\"\") = %q", got)
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("Examples", "examples"); got != 1.0 {
		t.Errorf("similarity of equal strings (case-insensitive) = %f, want 1.0", got)
	}
	if got := similarity("", ""); got != 1.0 {
		t.Errorf("similarity of empty strings = %f, want 1.0", got)
	}
	if got := similarity("abc", ""); got != 0.0 {
		t.Errorf("similarity against empty = %f, want 0.0", got)
	}

	close := similarity("author", "authors")
	far := similarity("author", "installation")
	if close <= far {
		t.Errorf("expected similarity(author, authors)=%f > similarity(author, installation)=%f", close, far)
	}
}
