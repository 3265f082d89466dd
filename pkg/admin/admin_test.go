package admin_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/api"
	"github.com/studybuddyai/buddy/pkg/admin"
	"github.com/studybuddyai/buddy/pkg/storage"
	"github.com/studybuddyai/buddy/pkg/storage/inmemory"
)

var _ = Describe("Client", func() {
	var (
		upstream *httptest.Server
		client   *admin.Client
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	serve := func(h http.HandlerFunc) {
		upstream = httptest.NewServer(h)
		var err error
		client, err = admin.NewClient(upstream.URL+"/admin", nil)
		Expect(err).NotTo(HaveOccurred())
	}

	It("requires an endpoint", func() {
		_, err := admin.NewClient(" ", nil)
		Expect(err).To(HaveOccurred())
	})

	Context("against a scripted server", func() {
		It("returns an Error for a JSON error body", func() {
			serve(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid password"}`))
			})

			err := client.Verify(ctx, "wrong")
			var adminErr *admin.Error
			Expect(errors.As(err, &adminErr)).To(BeTrue())
			Expect(adminErr.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(adminErr.Message).To(Equal("Invalid password"))
			Expect(adminErr.Unauthorized()).To(BeTrue())
		})

		It("falls back to the raw body", func() {
			serve(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			})

			_, err := client.Submissions(ctx, "pw")
			var adminErr *admin.Error
			Expect(errors.As(err, &adminErr)).To(BeTrue())
			Expect(adminErr.Message).To(Equal("bad gateway"))
		})

		It("treats success=false as a failure", func() {
			serve(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"success":false}`))
			})

			Expect(client.Verify(ctx, "pw")).To(HaveOccurred())
		})

		It("reports an undecodable response", func() {
			serve(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			})

			_, err := client.Submissions(ctx, "pw")
			Expect(err).To(MatchError(ContainSubstring("decoding admin response")))
		})
	})

	Context("against the API server", func() {
		var driver *inmemory.Driver

		BeforeEach(func() {
			driver = inmemory.NewDriver()
			server := api.NewServer(api.Config{AdminPassword: "pw"}, driver, nil)
			serve(api.HTTPHandler(server))
		})

		It("verifies the password", func() {
			Expect(client.Verify(ctx, "pw")).To(Succeed())
		})

		It("rejects a wrong password", func() {
			var adminErr *admin.Error
			Expect(errors.As(client.Verify(ctx, "nope"), &adminErr)).To(BeTrue())
			Expect(adminErr.Unauthorized()).To(BeTrue())
		})

		It("lists submissions newest first", func() {
			older := storage.NewSubmission("Old", "A", "old@example.com", "")
			older.CreatedAt = time.Now().Add(-time.Minute).UTC()
			newer := storage.NewSubmission("New", "B", "new@example.com", "hello")
			for _, s := range []*storage.Submission{older, newer} {
				_, err := driver.PutSubmission(ctx, s)
				Expect(err).NotTo(HaveOccurred())
			}

			subs, err := client.Submissions(ctx, "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(subs).To(HaveLen(2))
			Expect(subs[0].ID).To(Equal(newer.ID))
			Expect(subs[0].Message).To(Equal("hello"))
		})
	})
})
