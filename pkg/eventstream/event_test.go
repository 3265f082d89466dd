package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/pkg/eventstream"
	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/storage"
)

var _ = Describe("Event", func() {
	It("builds a chat event without message content", func() {
		t := storage.NewTranscript("gemini-2.5-flash", []llm.Message{
			llm.NewAssistantMessage("नमस्ते"),
			llm.NewUserMessage("secret question"),
		}, "secret answer")

		started := time.Unix(1735689600, 0).UTC()
		event := eventstream.NewChatCompletedEvent(t, eventstream.RequestMeta{
			Path:        "/chat",
			StartedAt:   started,
			CompletedAt: started.Add(1500 * time.Millisecond),
			HTTPStatus:  200,
			Done:        true,
		})

		Expect(event.EventType).To(Equal(eventstream.EventTypeChatCompleted))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.TranscriptID).To(Equal(t.ID))
		Expect(event.MessageCount).To(Equal(2))
		Expect(event.AnswerBytes).To(Equal(len("secret answer")))
		Expect(event.RequestMeta.DurationMs).To(Equal(int64(1500)))

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).NotTo(ContainSubstring("secret"))

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("request_meta"))
	})

	It("builds a submission event", func() {
		s := storage.NewSubmission("asha", "GHS Rampur", "a@example.org", "")
		event := eventstream.NewSubmissionReceivedEvent(s)

		Expect(event.EventType).To(Equal(eventstream.EventTypeSubmissionReceived))
		Expect(event.SubmissionID).To(Equal(s.ID))
		Expect(event.SchoolName).To(Equal("GHS Rampur"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeChatCompleted).To(Equal("buddy.chat.completed"))
		Expect(eventstream.EventTypeSubmissionReceived).To(Equal("buddy.submission.received"))
		Expect(eventstream.ErrNilEvent).To(MatchError("nil event"))
	})
})
