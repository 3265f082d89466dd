package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/pkg/logger"
)

// decodeJSONLine parses the single JSON record written to buf.
func decodeJSONLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	Expect(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("New", func() {
	It("writes text records with attributes", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf))
		l.Info("stream started", "endpoint", "http://localhost:8080/chat")

		Expect(buf.String()).To(ContainSubstring("stream started"))
		Expect(buf.String()).To(ContainSubstring("endpoint"))
	})

	It("filters debug records by default", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf))
		l.Debug("hidden")

		Expect(buf.String()).To(BeEmpty())
	})

	It("emits debug records when debug is enabled", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
		l.Debug("decode error", "line", "data: {")

		Expect(buf.String()).To(ContainSubstring("decode error"))
	})

	It("parses level names", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithLevel("warn"))
		l.Info("dropped")
		l.Warn("kept")

		Expect(buf.String()).NotTo(ContainSubstring("dropped"))
		Expect(buf.String()).To(ContainSubstring("kept"))
	})

	It("ignores unknown level names", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithLevel("loud"))
		l.Info("still info")

		Expect(buf.String()).To(ContainSubstring("still info"))
	})

	It("writes JSON records", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.Info("transcript stored", "messages", 3)

		parsed := decodeJSONLine(&buf)
		Expect(parsed["msg"]).To(Equal("transcript stored"))
		Expect(parsed["messages"]).To(BeNumerically("==", 3))
	})

	It("writes pretty records through charmbracelet/log", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
		l.Info("gateway listening")

		Expect(buf.String()).To(ContainSubstring("gateway listening"))
	})

	It("writes to every writer", func() {
		var a, b bytes.Buffer
		l := logger.New(logger.WithWriters(&a, &b))
		l.Info("both")

		Expect(a.String()).To(ContainSubstring("both"))
		Expect(b.String()).To(ContainSubstring("both"))
	})

	It("binds component attributes on child loggers", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.With("component", "gateway").Info("ready")

		parsed := decodeJSONLine(&buf)
		Expect(parsed["component"]).To(Equal("gateway"))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled for every level", func() {
		l := logger.Nop()
		Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		Expect(func() { l.With("k", "v").WithGroup("g").Error("msg") }).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	It("dispatches to every logger", func() {
		var text, js bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&text)),
			logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
		)
		multi.Info("broadcast", "key", "val")

		Expect(text.String()).To(ContainSubstring("broadcast"))
		Expect(decodeJSONLine(&js)["key"]).To(Equal("val"))
	})

	It("respects each logger's level", func() {
		var quiet, loud bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&quiet)),
			logger.New(logger.WithWriter(&loud), logger.WithDebug(true)),
		)
		multi.Debug("details")

		Expect(quiet.String()).To(BeEmpty())
		Expect(loud.String()).To(ContainSubstring("details"))
	})

	It("nests groups for every handler", func() {
		var buf bytes.Buffer
		multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
		multi.WithGroup("request").Info("processed", "method", "POST")

		group, ok := decodeJSONLine(&buf)["request"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(group["method"]).To(Equal("POST"))
	})
})

var _ = Describe("NewService", func() {
	It("appends JSON records to the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "buddy.log")

		l, closeFn, err := logger.NewService(false, false, path)
		Expect(err).NotTo(HaveOccurred())
		l.Info("gateway started", "listen", ":8080")
		Expect(closeFn()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"gateway started"`))
		Expect(string(data)).To(ContainSubstring(`"listen":":8080"`))
	})

	It("fails for an unwritable log file", func() {
		_, _, err := logger.NewService(false, false, filepath.Join(GinkgoT().TempDir(), "missing", "buddy.log"))
		Expect(err).To(HaveOccurred())
	})
})
