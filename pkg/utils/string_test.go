package utils

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("keeps strings within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("cuts long strings and adds an ellipsis", func() {
		Expect(Truncate("this is a long string", 10)).To(Equal("this is a ..."))
	})

	It("backs off to a character boundary", func() {
		// each Devanagari letter is three bytes
		out := Truncate("नमस्ते", 4)
		Expect(out).To(Equal("न..."))
		Expect(utf8.ValidString(out)).To(BeTrue())
	})
})
