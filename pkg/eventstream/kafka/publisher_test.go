package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	kafkago "github.com/segmentio/kafka-go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/pkg/eventstream"
	"github.com/studybuddyai/buddy/pkg/eventstream/kafka"
	"github.com/studybuddyai/buddy/pkg/storage"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer    *fakeWriter
		publisher *kafka.Publisher
	)

	BeforeEach(func() {
		writer = &fakeWriter{}
		publisher = kafka.NewPublisherWithWriter(writer, "buddy.events", nil)
	})

	It("validates its configuration", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
		Expect(err).To(HaveOccurred())

		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())

		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "t"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("writes a submission event keyed by event id", func() {
		event := eventstream.NewSubmissionReceivedEvent(storage.NewSubmission("asha", "GHS", "a@example.org", ""))
		Expect(publisher.PublishSubmission(context.Background(), event)).To(Succeed())

		Expect(writer.messages).To(HaveLen(1))
		msg := writer.messages[0]
		Expect(string(msg.Key)).To(Equal(event.EventID))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{
			Key:   "event_type",
			Value: []byte(eventstream.EventTypeSubmissionReceived),
		}))

		var got eventstream.SubmissionReceivedEvent
		Expect(json.Unmarshal(msg.Value, &got)).To(Succeed())
		Expect(got.SubmissionID).To(Equal(event.SubmissionID))
	})

	It("writes a chat event", func() {
		t := storage.NewTranscript("m", nil, "answer")
		event := eventstream.NewChatCompletedEvent(t, eventstream.RequestMeta{Path: "/chat"})
		Expect(publisher.PublishChat(context.Background(), event)).To(Succeed())

		Expect(writer.messages).To(HaveLen(1))
		var got map[string]any
		Expect(json.Unmarshal(writer.messages[0].Value, &got)).To(Succeed())
		Expect(got["event_type"]).To(Equal(eventstream.EventTypeChatCompleted))
		Expect(got["transcript_id"]).To(Equal(t.ID))
	})

	It("rejects nil events", func() {
		Expect(publisher.PublishChat(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(publisher.PublishSubmission(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("wraps write failures", func() {
		writer.err = errors.New("broker down")
		event := eventstream.NewSubmissionReceivedEvent(storage.NewSubmission("a", "b", "c", ""))
		Expect(publisher.PublishSubmission(context.Background(), event)).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(publisher.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
