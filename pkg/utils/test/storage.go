// Package testutils holds fakes and shared ginkgo specs used by the tests of
// several packages.
package testutils

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/storage"
)

// DescribeDriver registers the specs every storage.Driver implementation
// must pass. newDriver is called before each spec and must return an empty
// store.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" driver", func() {
		var (
			driver storage.Driver
			ctx    context.Context
			base   time.Time
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = nil
			driver = newDriver()
			base = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		transcriptAt := func(offset time.Duration, answer string) *storage.Transcript {
			t := storage.NewTranscript("test-model", []llm.Message{
				llm.NewAssistantMessage("नमस्ते!"),
				llm.NewUserMessage("प्रकाश संश्लेषण क्या है?"),
			}, answer)
			t.CreatedAt = base.Add(offset)
			return t
		}

		submissionAt := func(offset time.Duration, name string) *storage.Submission {
			s := storage.NewSubmission(name, "GHS Rampur", name+"@example.org", "please call")
			s.CreatedAt = base.Add(offset)
			return s
		}

		Describe("transcripts", func() {
			It("stores and retrieves a transcript", func() {
				t := transcriptAt(0, "पौधे भोजन बनाते हैं")

				inserted, err := driver.PutTranscript(ctx, t)
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeTrue())

				got, err := driver.GetTranscript(ctx, t.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Model).To(Equal("test-model"))
				Expect(got.Messages).To(Equal(t.Messages))
				Expect(got.Answer).To(Equal(t.Answer))
				Expect(got.CreatedAt).To(BeTemporally("~", t.CreatedAt, time.Millisecond))
			})

			It("ignores a second insert of the same id", func() {
				t := transcriptAt(0, "first")
				_, err := driver.PutTranscript(ctx, t)
				Expect(err).NotTo(HaveOccurred())

				dup := *t
				dup.Answer = "second"
				inserted, err := driver.PutTranscript(ctx, &dup)
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeFalse())

				got, err := driver.GetTranscript(ctx, t.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Answer).To(Equal("first"))
			})

			It("returns NotFoundError for an unknown id", func() {
				_, err := driver.GetTranscript(ctx, "missing")

				var nf storage.NotFoundError
				Expect(errors.As(err, &nf)).To(BeTrue())
				Expect(nf.ID).To(Equal("missing"))
			})

			It("lists newest first and honours the limit", func() {
				for i, answer := range []string{"old", "new", "mid"} {
					offset := []time.Duration{0, 2 * time.Minute, time.Minute}[i]
					_, err := driver.PutTranscript(ctx, transcriptAt(offset, answer))
					Expect(err).NotTo(HaveOccurred())
				}

				all, err := driver.ListTranscripts(ctx, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(answers(all)).To(Equal([]string{"new", "mid", "old"}))

				two, err := driver.ListTranscripts(ctx, 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(answers(two)).To(Equal([]string{"new", "mid"}))
			})

			It("rejects invalid records", func() {
				_, err := driver.PutTranscript(ctx, nil)
				Expect(err).To(HaveOccurred())

				_, err = driver.PutTranscript(ctx, &storage.Transcript{})
				Expect(err).To(HaveOccurred())
			})
		})

		Describe("submissions", func() {
			It("stores and retrieves a submission", func() {
				s := submissionAt(0, "asha")

				inserted, err := driver.PutSubmission(ctx, s)
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeTrue())

				got, err := driver.GetSubmission(ctx, s.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Name).To(Equal("asha"))
				Expect(got.SchoolName).To(Equal("GHS Rampur"))
				Expect(got.Email).To(Equal("asha@example.org"))
				Expect(got.Message).To(Equal("please call"))
				Expect(got.CreatedAt).To(BeTemporally("~", s.CreatedAt, time.Millisecond))
			})

			It("returns NotFoundError for an unknown id", func() {
				_, err := driver.GetSubmission(ctx, "missing")

				var nf storage.NotFoundError
				Expect(errors.As(err, &nf)).To(BeTrue())
			})

			It("lists newest first", func() {
				for i, name := range []string{"b", "c", "a"} {
					_, err := driver.PutSubmission(ctx, submissionAt(time.Duration(i)*time.Hour, name))
					Expect(err).NotTo(HaveOccurred())
				}

				list, err := driver.ListSubmissions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(3))
				Expect(list[0].Name).To(Equal("a"))
				Expect(list[2].Name).To(Equal("b"))
			})

			It("returns an empty list for an empty store", func() {
				list, err := driver.ListSubmissions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(BeEmpty())
			})
		})
	})
}

func answers(ts []*storage.Transcript) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Answer
	}
	return out
}
