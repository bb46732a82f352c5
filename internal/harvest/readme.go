package harvest

import (
	"regexp"
	"strings"
)

// Section is one heading of a skill README with the content under it.
// The text before the first heading is kept as a section with an empty
// title, ordered last.
type Section struct {
	Title string
	Body  string
}

// Sections is an ordered list of README sections
type Sections []Section

var exampleLinePattern = regexp.MustCompile(`(?m)[-*](.*)`)

// ExtractSections splits README markdown into sections keyed by heading.
// Consecutive headings with the same title are merged.
func ExtractSections(readme string) Sections {
	var sections Sections
	index := map[string]int{"": 0}
	sections = append(sections, Section{Title: ""})

	last := ""
	for _, line := range strings.Split(readme, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			last = strings.Trim(line, "# ")
			if _, ok := index[last]; !ok {
				index[last] = len(sections)
				sections = append(sections, Section{Title: last})
			}
		} else {
			sections[index[last]].Body += "\n" + line
		}
	}

	for i := range sections {
		sections[i].Body = strings.TrimSpace(sections[i].Body)
	}

	// Shift the prelude to the end so the first element is the first heading
	if len(sections) > 1 {
		prelude := sections[0]
		sections = append(sections[1:], prelude)
	}

	return sections
}

// Get returns the body of the section with the exact title
func (s Sections) Get(title string) (string, bool) {
	for _, sec := range s {
		if sec.Title == title {
			return sec.Body, true
		}
	}
	return "", false
}

// FindSection returns the body of the section whose heading matches name
// most closely, or empty when nothing reaches minConf.
func FindSection(name string, sections Sections, minConf float64) string {
	best := -1
	bestConf := 0.0
	for i, sec := range sections {
		if conf := similarity(sec.Title, name); conf > bestConf {
			best, bestConf = i, conf
		}
	}
	if best < 0 || bestConf < minConf {
		return ""
	}
	return sections[best].Body
}

// FindExamples pulls utterance examples out of the Examples (or Usage)
// section's bullet list.
//
// " - \"Hey Mycroft, how are you?\"" becomes "How are you?"
func FindExamples(sections Sections) []string {
	body := FindSection("examples", sections, 0.5)
	if body == "" {
		body = FindSection("usage", sections, 0.5)
	}
	if body == "" {
		return nil
	}

	var examples []string
	for _, m := range exampleLinePattern.FindAllStringSubmatch(body, -1) {
		if parsed := ParseExample(m[1]); parsed != "" {
			examples = append(examples, parsed)
		}
	}
	return examples
}

// FindTitleInfo determines the skill's display title and short description.
// When the first heading resembles the skill name it is used as the title;
// otherwise the title is derived from the skill name and the short
// description comes from the README prelude.
func FindTitleInfo(sections Sections, skillName string) (title, shortDesc string) {
	if len(sections) == 0 {
		return titleCase(norm(skillName)), ""
	}

	first := sections[0]
	if similarity(norm(first.Title), norm(skillName)) >= 0.3 {
		return Capitalize(first.Title), first.Body
	}

	prelude, _ := sections.Get("")
	return titleCase(norm(skillName)), prelude
}

// titleCase capitalizes each space-separated word
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = Capitalize(w)
	}
	return strings.Join(words, " ")
}

// ParseExample normalizes a single raw example line.
//
// "hey mycroft, what is this" -> "What is this?"
func ParseExample(example string) string {
	example = strings.Trim(example, " \n\"'`")

	// Keep only the part before any trailing annotation
	if idx := strings.IndexAny(example, "\"`"); idx >= 0 {
		example = example[:idx]
	}

	// Remove the wake word prefix
	lower := strings.ToLower(example)
	for _, prefix := range []string{"hey mycroft", "hey-mycroft", "mycroft"} {
		if strings.HasPrefix(lower, prefix) {
			example = example[len(prefix):]
			break
		}
	}
	example = strings.Trim(example, " ,")

	if isQuestion(example) {
		example = strings.TrimRight(example, "?.") + "?"
	}

	return FormatSentence(example)
}

var questionWords = []string{"who", "what", "when", "where"}
var questionSuffixes = []string{"'s", "s", "", "'d", "d", "'re", "re"}

func isQuestion(s string) bool {
	lower := strings.ToLower(s)
	for _, word := range questionWords {
		for _, suffix := range questionSuffixes {
			if strings.HasPrefix(lower, word+suffix+" ") {
				return true
			}
		}
	}
	return false
}

// FormatSentence capitalizes and terminates a sentence.
//
// "this is a test" -> "This is a test."
func FormatSentence(s string) string {
	s = Capitalize(s)
	if s != "" {
		last := s[len(s)-1]
		if isAlnum(last) {
			return s + "."
		}
	}
	return s
}

// Capitalize uppercases the first letter without lowercasing the rest
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// norm normalizes a string for comparison between skill-names and spaced names
func norm(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "-", " ")
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// similarity scores how alike two strings are, case-insensitively, as
// 2*lcs/(len(a)+len(b)). 1.0 means equal, 0.0 means nothing in common.
func similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	return 2.0 * float64(lcsLength(a, b)) / float64(len(a)+len(b))
}

// lcsLength computes the longest common subsequence length of two strings
func lcsLength(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
