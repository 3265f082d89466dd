package postgres_test

import (
	"context"
	"fmt"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/studybuddyai/buddy/pkg/storage"
	"github.com/studybuddyai/buddy/pkg/storage/postgres"
	testutils "github.com/studybuddyai/buddy/pkg/utils/test"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("BUDDY_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("BUDDY_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = testutils.DescribeDriver("postgres", func() storage.Driver {
	ctx := context.Background()
	d, err := postgres.NewDriver(ctx, connStr())
	Expect(err).NotTo(HaveOccurred())

	// Clean all rows before each test for isolation.
	_, err = d.DB().ExecContext(ctx, "DELETE FROM transcripts")
	Expect(err).NotTo(HaveOccurred())
	_, err = d.DB().ExecContext(ctx, "DELETE FROM submissions")
	Expect(err).NotTo(HaveOccurred())

	return d
})

var _ = Describe("NewDriver", func() {
	It("returns an error for invalid connection string", func() {
		_, err := postgres.NewDriver(context.Background(), "host=invalid port=9999 user=bad dbname=bad sslmode=disable connect_timeout=1")
		Expect(err).To(HaveOccurred())
		fmt.Fprintf(GinkgoWriter, "expected error: %v\n", err)
	})
})
