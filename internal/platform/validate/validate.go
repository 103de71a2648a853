package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	phoneNoise   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")
)

func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// Phone accepts international digit strings, ignoring spaces, dashes and
// parentheses.
func Phone(s string) bool {
	return phonePattern.MatchString(phoneNoise.Replace(s))
}

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Title turns a snake_case field name into "Title Case" for messages.
func Title(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Required returns "<Field Title> is required".
func Required(field string) string {
	return Title(field) + " is required"
}

// TooLong reports whether s, trimmed, holds more than max characters.
func TooLong(s string, max int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) > max
}

// MaxLength returns "<Field Title> must be at most <max> characters long".
func MaxLength(field string, max int) string {
	return fmt.Sprintf("%s must be at most %d characters long", Title(field), max)
}

// Errors collects field messages in order.
type Errors []string

func (e *Errors) Add(msg string) {
	*e = append(*e, msg)
}

func (e Errors) Empty() bool {
	return len(e) == 0
}
