package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/pkg/chatstream"
	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/storage/inmemory"
	testutils "github.com/studybuddyai/buddy/pkg/utils/test"
)

type staticPrompt string

func (p staticPrompt) Get() string { return string(p) }

const upstreamEvents = "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hel\"}}]}\n\n" +
	": keep-alive\n\n" +
	"data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n\n" +
	"data: [DONE]\n\n"

func chatBody(messages ...llm.Message) io.Reader {
	body, err := json.Marshal(llm.ChatRequest{Messages: messages})
	Expect(err).NotTo(HaveOccurred())
	return strings.NewReader(string(body))
}

func decodeError(resp *http.Response) string {
	var errResp llm.ErrorResponse
	Expect(json.NewDecoder(resp.Body).Decode(&errResp)).To(Succeed())
	return errResp.Error
}

var _ = Describe("Gateway", func() {
	var (
		g         *Gateway
		driver    *inmemory.Driver
		publisher *testutils.RecordingPublisher
		upstream  *httptest.Server
		config    Config

		upstreamHandler http.HandlerFunc
		gotUpstreamReq  openai.ChatCompletionRequest
		gotUpstreamAuth string
	)

	BeforeEach(func() {
		gotUpstreamReq = openai.ChatCompletionRequest{}
		gotUpstreamAuth = ""
		upstreamHandler = func(w http.ResponseWriter, r *http.Request) {
			gotUpstreamAuth = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&gotUpstreamReq)).To(Succeed())

			w.Header().Set("Content-Type", "text/event-stream")
			flusher, ok := w.(http.Flusher)
			Expect(ok).To(BeTrue())
			for _, event := range strings.SplitAfter(upstreamEvents, "\n\n") {
				fmt.Fprint(w, event)
				flusher.Flush()
			}
		}
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			upstreamHandler(w, r)
		}))

		driver = inmemory.NewDriver()
		publisher = testutils.NewRecordingPublisher()
		config = Config{
			ListenAddr:     ":0",
			UpstreamURL:    upstream.URL + "/v1/chat/completions",
			UpstreamAPIKey: "upstream-secret",
			Model:          "google/gemini-3-flash-preview",
			Prompt:         staticPrompt("You are a helpful assistant for Study Buddy AI."),
			Publisher:      publisher,
		}
	})

	JustBeforeEach(func() {
		var err error
		g, err = New(config, driver, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if g != nil {
			_ = g.Close()
		}
		upstream.Close()
	})

	post := func(body io.Reader, headers ...string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/chat", body)
		req.Header.Set("Content-Type", "application/json")
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		resp, err := g.server.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("New", func() {
		It("requires an upstream URL and model", func() {
			_, err := New(Config{Model: "m"}, driver, nil)
			Expect(err).To(HaveOccurred())

			_, err = New(Config{UpstreamURL: "http://x"}, driver, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when the upstream streams an answer", func() {
		It("relays the SSE body verbatim", func() {
			resp := post(chatBody(llm.NewUserMessage("Say hello")))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(upstreamEvents))
		})

		It("prepends the system prompt and authenticates upstream", func() {
			resp := post(chatBody(
				llm.NewAssistantMessage("नमस्ते!"),
				llm.NewUserMessage("Say hello"),
			), "Authorization", "Bearer anon-key")
			resp.Body.Close()

			Expect(gotUpstreamAuth).To(Equal("Bearer upstream-secret"))
			Expect(gotUpstreamReq.Model).To(Equal("google/gemini-3-flash-preview"))
			Expect(gotUpstreamReq.Stream).To(BeTrue())
			Expect(gotUpstreamReq.Messages).To(HaveLen(3))
			Expect(gotUpstreamReq.Messages[0].Role).To(Equal(openai.ChatMessageRoleSystem))
			Expect(gotUpstreamReq.Messages[0].Content).To(ContainSubstring("Study Buddy AI"))
			Expect(gotUpstreamReq.Messages[1].Content).To(Equal("नमस्ते!"))
			Expect(gotUpstreamReq.Messages[2].Role).To(Equal(openai.ChatMessageRoleUser))
		})

		It("stores the exchange and publishes an event", func() {
			resp := post(chatBody(llm.NewUserMessage("Say hello")))
			_, _ = io.ReadAll(resp.Body)
			resp.Body.Close()

			// Drain the worker pool to ensure async storage completes
			Expect(g.Close()).To(Succeed())
			g = nil

			list, err := driver.ListTranscripts(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Answer).To(Equal("Hello"))
			Expect(list[0].Messages).To(Equal([]llm.Message{llm.NewUserMessage("Say hello")}))

			events := publisher.Chats()
			Expect(events).To(HaveLen(1))
			Expect(events[0].TranscriptID).To(Equal(list[0].ID))
			Expect(events[0].RequestMeta.Done).To(BeTrue())
		})

		It("stores the answer when a chunk carries a mistyped field", func() {
			upstreamHandler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: {\"created\":\"1700000000\",\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"+
					"data: {\"choices\":[{\"delta\":{\"content\":123}}]}\n\n"+
					"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"+
					"data: [DONE]\n\n")
			}

			resp := post(chatBody(llm.NewUserMessage("Say hello")))
			_, _ = io.ReadAll(resp.Body)
			resp.Body.Close()

			Expect(g.Close()).To(Succeed())
			g = nil

			list, err := driver.ListTranscripts(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Answer).To(Equal("Hello"))
		})

		It("serves the chatstream client end to end", func() {
			listener, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() { _ = g.RunWithListener(listener) }()

			client, err := chatstream.NewClient(chatstream.Config{
				Endpoint: "http://" + listener.Addr().String() + "/chat",
			})
			Expect(err).NotTo(HaveOccurred())

			var snaps []string
			Eventually(func() error {
				snaps = nil
				stream, err := client.SendConversation(context.Background(), []llm.Message{llm.NewUserMessage("hi")})
				if err != nil {
					return err
				}
				for snap, err := range stream.Snapshots() {
					if err != nil {
						return err
					}
					snaps = append(snaps, snap)
				}
				return nil
			}).Should(Succeed())

			Expect(snaps).To(Equal([]string{"Hel", "Hello"}))
		})
	})

	Context("with an invalid request", func() {
		DescribeTable("returns 400",
			func(body string) {
				resp := post(strings.NewReader(body))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(resp)).To(HavePrefix("invalid request"))
			},
			Entry("malformed JSON", `{"messages":`),
			Entry("no messages", `{"messages":[]}`),
			Entry("ends with assistant", `{"messages":[{"role":"assistant","content":"hi"}]}`),
		)
	})

	Context("without an upstream key", func() {
		BeforeEach(func() {
			config.UpstreamAPIKey = ""
		})

		It("returns a configuration error", func() {
			resp := post(chatBody(llm.NewUserMessage("hi")))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(decodeError(resp)).To(Equal("upstream API key is not configured"))
		})
	})

	Context("when the upstream fails", func() {
		DescribeTable("maps the status",
			func(upstreamStatus, wantStatus int, wantMessage string) {
				upstreamHandler = func(w http.ResponseWriter, _ *http.Request) {
					http.Error(w, `{"error":"boom"}`, upstreamStatus)
				}

				resp := post(chatBody(llm.NewUserMessage("hi")))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(wantStatus))
				Expect(decodeError(resp)).To(Equal(wantMessage))
			},
			Entry("rate limited", http.StatusTooManyRequests, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."),
			Entry("payment required", http.StatusPaymentRequired, http.StatusPaymentRequired, "Service temporarily unavailable."),
			Entry("server error", http.StatusBadGateway, http.StatusInternalServerError, "AI service error"),
			Entry("client error", http.StatusBadRequest, http.StatusInternalServerError, "AI service error"),
		)

		It("stores nothing", func() {
			upstreamHandler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}

			resp := post(chatBody(llm.NewUserMessage("hi")))
			resp.Body.Close()
			Expect(g.Close()).To(Succeed())
			g = nil

			list, err := driver.ListTranscripts(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("reports an unreachable upstream", func() {
			upstream.Close()

			resp := post(chatBody(llm.NewUserMessage("hi")))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(decodeError(resp)).To(Equal("upstream request failed"))
		})
	})

	Context("with client authentication enabled", func() {
		BeforeEach(func() {
			config.APIKey = "client-key"
		})

		It("rejects a missing or wrong token", func() {
			resp := post(chatBody(llm.NewUserMessage("hi")))
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			resp2 := post(chatBody(llm.NewUserMessage("hi")), "Authorization", "Bearer nope")
			defer resp2.Body.Close()
			Expect(resp2.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("accepts the configured token", func() {
			resp := post(chatBody(llm.NewUserMessage("hi")), "Authorization", "Bearer client-key")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	It("answers CORS preflight requests", func() {
		req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
		req.Header.Set("Origin", "https://studybuddy.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "content-type, x-client-info")

		resp, err := g.server.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(ContainSubstring("x-client-info"))
	})

	It("reports health", func() {
		resp, err := g.server.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var got map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&got)).To(Succeed())
		Expect(got["status"]).To(Equal("ok"))
		Expect(got["upstream_key_set"]).To(BeTrue())
	})
})
