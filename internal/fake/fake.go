// Package fake produces the human-looking field values generators put on
// entities: names, addresses, product names, free text.
package fake

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Faker is not safe for concurrent use; each generator owns one.
type Faker struct {
	f     *gofakeit.Faker
	title cases.Caser
}

// New returns a Faker whose output is fully determined by seed.
func New(seed uint64) *Faker {
	return &Faker{
		f:     gofakeit.New(seed),
		title: cases.Title(language.English),
	}
}

// Clean NFC-normalises s and trims surrounding space so equal names compare
// equal in the store regardless of how the source composed accents.
func Clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func (f *Faker) FirstName() string { return Clean(f.f.FirstName()) }
func (f *Faker) LastName() string  { return Clean(f.f.LastName()) }

// Email builds a lower-case address from a person's name. tag keeps
// addresses unique across users sharing a name.
func (f *Faker) Email(first, last, tag string) string {
	local := strings.ToLower(strings.Join(strings.Fields(first+" "+last), "."))
	local = strings.Map(func(r rune) rune {
		if r == '.' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, local)
	if local == "" {
		local = "user"
	}
	return fmt.Sprintf("%s.%s@%s", local, tag, strings.ToLower(f.f.DomainName()))
}

// PasswordHash returns the hex SHA-256 of a random password. The plain
// password is never kept.
func (f *Faker) PasswordHash() string {
	sum := sha256.Sum256([]byte(f.f.Password(true, true, true, true, false, 16)))
	return hex.EncodeToString(sum[:])
}

func (f *Faker) Street() string     { return Clean(f.f.Street()) }
func (f *Faker) City() string       { return Clean(f.f.City()) }
func (f *Faker) State() string      { return Clean(f.f.State()) }
func (f *Faker) Country() string    { return Clean(f.f.Country()) }
func (f *Faker) PostalCode() string { return f.f.Zip() }
func (f *Faker) Occupation() string { return Clean(f.f.JobTitle()) }
func (f *Faker) IPv4() string       { return f.f.IPv4Address() }

// ProductName returns a title-cased product name.
func (f *Faker) ProductName() string {
	return f.Title(f.f.ProductName())
}

// Word returns one lower-case word.
func (f *Faker) Word() string {
	return strings.ToLower(Clean(f.f.Word()))
}

// Sentence joins n random words into a capitalised sentence ending in a
// full stop.
func (f *Faker) Sentence(n int) string {
	if n < 1 {
		n = 1
	}
	words := make([]string, n)
	for i := range words {
		words[i] = f.Word()
	}
	words[0] = f.title.String(words[0])
	return strings.Join(words, " ") + "."
}

// Paragraph is a few sentences of filler text.
func (f *Faker) Paragraph(sentences int) string {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = f.Sentence(6 + i%4)
	}
	return strings.Join(parts, " ")
}

// Title applies English title casing.
func (f *Faker) Title(s string) string {
	return f.title.String(Clean(s))
}
