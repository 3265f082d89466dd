package gatewaycmder_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	gatewaycmder "github.com/studybuddyai/buddy/cmd/buddy/serve/gateway"
	"github.com/studybuddyai/buddy/pkg/config"
	"github.com/studybuddyai/buddy/pkg/eventstream/nop"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/storage/inmemory"
)

var _ = Describe("NewGatewayCmd", func() {
	It("registers the gateway, storage and events flags", func() {
		cmd := gatewaycmder.NewGatewayCmd()
		Expect(cmd.Use).To(Equal("gateway"))
		for _, name := range []string{"listen", "upstream", "model", "prompt-file", "cors-origins", "storage", "sqlite", "postgres", "events", "brokers", "topic", "log-file"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("defaults the listen flag from the built-in config", func() {
		cmd := gatewaycmder.NewGatewayCmd()
		Expect(cmd.Flags().Lookup("listen").DefValue).To(Equal(":8080"))
	})
})

var _ = Describe("Build", func() {
	var (
		v   *viper.Viper
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		v, err = config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)
	})

	It("builds a gateway with the built-in prompt", func() {
		g, err := gatewaycmder.Build(ctx, v, inmemory.NewDriver(), nop.NewPublisher(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(g).NotTo(BeNil())
		_ = g.Close()
	})

	It("loads the prompt file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "prompt.md")
		Expect(os.WriteFile(path, []byte("You are a tutor."), 0o600)).To(Succeed())
		v.Set("gateway.prompt_file", path)

		g, err := gatewaycmder.Build(ctx, v, inmemory.NewDriver(), nop.NewPublisher(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		_ = g.Close()
	})

	It("fails when the prompt file is missing", func() {
		v.Set("gateway.prompt_file", filepath.Join(GinkgoT().TempDir(), "missing.md"))

		_, err := gatewaycmder.Build(ctx, v, inmemory.NewDriver(), nop.NewPublisher(), logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("loading system prompt")))
	})
})
