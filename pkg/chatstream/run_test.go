package chatstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/pkg/chatstream"
	"github.com/studybuddyai/buddy/pkg/llm"
)

var _ = Describe("Run", func() {
	var (
		handler    http.HandlerFunc
		client     *chatstream.Client
		transcript *chatstream.Transcript
		updates    [][]llm.Message
	)

	BeforeEach(func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		DeferCleanup(server.Close)

		var err error
		client, err = chatstream.NewClient(chatstream.Config{Endpoint: server.URL})
		Expect(err).NotTo(HaveOccurred())

		transcript = chatstream.NewTranscript("नमस्ते!")
		updates = nil
	})

	onUpdate := func(msgs []llm.Message) {
		updates = append(updates, msgs)
	}

	It("streams the answer into the transcript", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			writeFlushed(w, deltaEvent("Hel"), deltaEvent("lo"), "data: [DONE]\n\n")
		}

		answer, err := chatstream.Run(context.Background(), client, transcript, "hi", onUpdate)
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("Hello"))

		Expect(transcript.Messages()).To(Equal([]llm.Message{
			llm.NewAssistantMessage("नमस्ते!"),
			llm.NewUserMessage("hi"),
			llm.NewAssistantMessage("Hello"),
		}))
		Expect(transcript.Busy()).To(BeFalse())

		// the user message, then one update per snapshot
		Expect(updates).To(HaveLen(3))
		Expect(updates[1][2].Content).To(Equal("Hel"))
	})

	It("appends the apology when the endpoint fails", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}

		answer, err := chatstream.Run(context.Background(), client, transcript, "hi", onUpdate)
		Expect(answer).To(BeEmpty())

		var terr *chatstream.TransportError
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(terr.StatusCode).To(Equal(http.StatusInternalServerError))

		msgs := transcript.Messages()
		Expect(msgs).To(HaveLen(3))
		Expect(msgs[2]).To(Equal(llm.NewAssistantMessage(chatstream.DefaultApology)))
		Expect(transcript.Busy()).To(BeFalse())
	})

	It("keeps the partial answer without an apology when canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		handler = func(w http.ResponseWriter, r *http.Request) {
			writeFlushed(w, deltaEvent("Hel"))
			<-r.Context().Done()
		}

		answer, err := chatstream.Run(ctx, client, transcript, "hi", func(msgs []llm.Message) {
			if msgs[len(msgs)-1].Role == llm.RoleAssistant {
				cancel()
			}
		})
		Expect(err).To(MatchError(chatstream.ErrCanceled))
		Expect(answer).To(Equal("Hel"))

		msgs := transcript.Messages()
		Expect(msgs).To(HaveLen(3))
		Expect(msgs[2]).To(Equal(llm.NewAssistantMessage("Hel")))
	})

	It("refuses to start while another send is active", func() {
		_, err := transcript.Begin("first")
		Expect(err).NotTo(HaveOccurred())

		_, err = chatstream.Run(context.Background(), client, transcript, "second", nil)
		Expect(err).To(MatchError(chatstream.ErrBusy))
	})
})
