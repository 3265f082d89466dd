package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseLine", func() {
	DescribeTable("classifies lines",
		func(line string, kind Kind, payload string) {
			frame := ParseLine(line)
			Expect(frame.Kind).To(Equal(kind))
			Expect(frame.Payload).To(Equal(payload))
		},
		Entry("empty line", "", KindBlank, ""),
		Entry("whitespace-only line", "   ", KindBlank, ""),
		Entry("bare carriage return", "\r", KindBlank, ""),
		Entry("lone colon heartbeat", ":", KindComment, ""),
		Entry("comment", ": keep-alive", KindComment, ""),
		Entry("event field", "event: message", KindOther, ""),
		Entry("data without a space", "data:{}", KindOther, ""),
		Entry("data line", `data: {"a":1}`, KindData, `{"a":1}`),
		Entry("data line with CRLF", "data: {\"a\":1}\r", KindData, `{"a":1}`),
		Entry("data line with padding", "data:   hello  ", KindData, "hello"),
		Entry("done sentinel", "data: [DONE]", KindDone, ""),
		Entry("done sentinel with CRLF", "data: [DONE]\r", KindDone, ""),
	)

	It("only strips a single trailing carriage return", func() {
		frame := ParseLine("data: x\r\r")
		Expect(frame.Kind).To(Equal(KindData))
		Expect(frame.Payload).To(Equal("x"))
	})
})

var _ = Describe("LineBuffer", func() {
	var b *LineBuffer

	BeforeEach(func() {
		b = &LineBuffer{}
	})

	It("returns nothing until a newline arrives", func() {
		_, _ = b.Write([]byte("data: par"))
		_, ok := b.Next()
		Expect(ok).To(BeFalse())
		Expect(b.Pending()).To(Equal("data: par"))

		_, _ = b.Write([]byte("tial\n"))
		line, ok := b.Next()
		Expect(ok).To(BeTrue())
		Expect(line).To(Equal("data: partial"))
		Expect(b.Len()).To(BeZero())
	})

	It("returns multiple lines from a single write in order", func() {
		_, _ = b.Write([]byte("one\ntwo\n\nthree"))

		var lines []string
		for {
			line, ok := b.Next()
			if !ok {
				break
			}
			lines = append(lines, line)
		}

		Expect(lines).To(Equal([]string{"one", "two", ""}))
		Expect(b.Pending()).To(Equal("three"))
	})

	It("reassembles multi-byte characters split across writes", func() {
		word := []byte("नमस्ते\n")
		_, _ = b.Write(word[:2])
		_, ok := b.Next()
		Expect(ok).To(BeFalse())

		_, _ = b.Write(word[2:])
		line, ok := b.Next()
		Expect(ok).To(BeTrue())
		Expect(line).To(Equal("नमस्ते"))
	})

	It("puts unread lines back at the front", func() {
		_, _ = b.Write([]byte("first\nsecond\n"))
		line, _ := b.Next()
		Expect(line).To(Equal("first"))

		b.Unread(line)
		Expect(b.Pending()).To(Equal("first\nsecond\n"))

		line, ok := b.Next()
		Expect(ok).To(BeTrue())
		Expect(line).To(Equal("first"))
	})
})
