package submissionscmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/api"
	"github.com/studybuddyai/buddy/pkg/config"
	"github.com/studybuddyai/buddy/pkg/storage"
	"github.com/studybuddyai/buddy/pkg/storage/inmemory"
)

var _ = Describe("submissions command", func() {
	var (
		server *httptest.Server
		driver *inmemory.Driver
		out    *bytes.Buffer
		cmder  *submissionsCommander
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		server = httptest.NewServer(api.HTTPHandler(api.NewServer(api.Config{AdminPassword: "pw"}, driver, nil)))
		DeferCleanup(server.Close)

		GinkgoT().Setenv("BUDDY_ADMIN_PASSWORD", "pw")
		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		v.Set("client.api_target", server.URL+"/")

		out = &bytes.Buffer{}
		cmder = &submissionsCommander{viper: v, out: out}
	})

	put := func(name, school, email, message string) {
		_, err := driver.PutSubmission(context.Background(), storage.NewSubmission(name, school, email, message))
		Expect(err).NotTo(HaveOccurred())
	}

	It("prints a table of submissions", func() {
		put("Asha", "Kendriya Vidyalaya", "asha@example.com", "Please add\nphysics notes")

		Expect(cmder.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Asha"))
		Expect(out.String()).To(ContainSubstring("Kendriya Vidyalaya"))
		Expect(out.String()).To(ContainSubstring("Please add physics notes"))
		Expect(out.String()).To(ContainSubstring("1 submission(s)"))
	})

	It("reports an empty list", func() {
		Expect(cmder.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No submissions yet."))
	})

	It("prints JSON with --json", func() {
		put("Ravi", "DPS", "ravi@example.com", "hello")
		cmder.jsonOut = true

		Expect(cmder.run(context.Background())).To(Succeed())
		var subs []storage.Submission
		Expect(json.Unmarshal(out.Bytes(), &subs)).To(Succeed())
		Expect(subs).To(HaveLen(1))
		Expect(subs[0].Email).To(Equal("ravi@example.com"))
	})

	It("verifies the password with --verify", func() {
		cmder.verify = true
		Expect(cmder.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Password accepted"))
	})

	It("rejects a wrong password", func() {
		GinkgoT().Setenv("BUDDY_ADMIN_PASSWORD", "wrong")
		cmder.verify = true
		err := cmder.run(context.Background())
		Expect(err).To(MatchError("invalid admin password"))
	})

	It("requires a password", func() {
		GinkgoT().Setenv("BUDDY_ADMIN_PASSWORD", "")
		cmder.readPassword = func() (string, error) { return "", nil }
		Expect(cmder.run(context.Background())).To(MatchError(ContainSubstring("BUDDY_ADMIN_PASSWORD")))
	})

	It("uses the prompted password", func() {
		GinkgoT().Setenv("BUDDY_ADMIN_PASSWORD", "")
		cmder.readPassword = func() (string, error) { return "pw", nil }
		cmder.verify = true
		Expect(cmder.run(context.Background())).To(Succeed())
	})

	It("returns prompt errors", func() {
		GinkgoT().Setenv("BUDDY_ADMIN_PASSWORD", "")
		cmder.readPassword = func() (string, error) { return "", errors.New("no tty") }
		Expect(cmder.run(context.Background())).To(MatchError("no tty"))
	})
})

var _ = Describe("truncate", func() {
	It("keeps short strings", func() {
		Expect(truncate("abc", 5)).To(Equal("abc"))
	})

	It("cuts on rune boundaries", func() {
		Expect(truncate("नमस्ते दुनिया", 4)).To(Equal("नमस…"))
	})
})
