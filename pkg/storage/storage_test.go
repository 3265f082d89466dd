package storage_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/storage"
)

var _ = Describe("NewSubmission", func() {
	It("assigns an id and trims fields", func() {
		s := storage.NewSubmission(" Asha ", "GHS Rampur", "asha@example.org ", " hello ")
		Expect(s.ID).NotTo(BeEmpty())
		Expect(s.CreatedAt).NotTo(BeZero())
		Expect(s.Name).To(Equal("Asha"))
		Expect(s.Email).To(Equal("asha@example.org"))
		Expect(s.Message).To(Equal("hello"))
		Expect(s.Validate()).To(Succeed())
	})

	It("requires name, school and email", func() {
		for _, s := range []*storage.Submission{
			storage.NewSubmission("", "school", "e@x", ""),
			storage.NewSubmission("n", " ", "e@x", ""),
			storage.NewSubmission("n", "school", "", ""),
		} {
			Expect(s.Validate()).To(MatchError(storage.ErrInvalidSubmission))
		}
	})
})

var _ = Describe("NewTranscript", func() {
	It("copies the messages", func() {
		msgs := []llm.Message{llm.NewUserMessage("q")}
		t := storage.NewTranscript("m", msgs, "a")
		msgs[0].Content = "changed"
		Expect(t.Messages[0].Content).To(Equal("q"))
		Expect(t.ID).NotTo(BeEmpty())
	})
})

var _ = Describe("NotFoundError", func() {
	It("names the record", func() {
		Expect(storage.NotFoundError{Kind: "submission", ID: "x"}.Error()).To(Equal("submission not found: x"))
		Expect(storage.NotFoundError{}.Error()).To(Equal("record not found"))
	})

	It("matches with errors.As", func() {
		var err error = storage.NotFoundError{ID: "x"}
		var nf storage.NotFoundError
		Expect(errors.As(err, &nf)).To(BeTrue())
	})
})
