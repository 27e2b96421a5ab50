package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-sorter/internal/domain"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		db, err = NewBoltDB(filepath.Join(tmpDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveDocument", func() {
		var (
			doc *Document
			err error
		)

		BeforeEach(func() {
			doc = &Document{
				ID:          "doc-1",
				Hash:        "abc123",
				SourcePath:  "/in/receipt.pdf",
				Status:      StatusProcessed,
				Destination: "/out/CAD/2024-01-16_Starbucks_15.50.pdf",
				Currency:    "CAD",
				Category:    domain.MealsEntertainment,
				Confidence:  92,
				ProcessedAt: time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveDocument(doc)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should be retrievable by ID", func() {
			got, err := db.GetDocument("doc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Destination).To(Equal(doc.Destination))
			Expect(got.Category).To(Equal(domain.MealsEntertainment))
			Expect(got.Confidence).To(Equal(domain.Confidence(92)))
		})

		It("should be retrievable by hash", func() {
			got, err := db.FindByHash("abc123")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("doc-1"))
		})

		When("the same content is recorded again", func() {
			JustBeforeEach(func() {
				again := *doc
				again.ID = "doc-2"
				Expect(db.SaveDocument(&again)).To(Succeed())
			})

			It("points the hash at the latest record", func() {
				got, err := db.FindByHash("abc123")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal("doc-2"))
			})
		})

		When("a later attempt on the same content fails", func() {
			JustBeforeEach(func() {
				failed := &Document{ID: "doc-3", Hash: "abc123", Status: StatusFailed, Error: "oracle timeout"}
				Expect(db.SaveDocument(failed)).To(Succeed())
			})

			It("keeps the hash on the successful record", func() {
				got, err := db.FindByHash("abc123")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal("doc-1"))
				Expect(got.Succeeded()).To(BeTrue())
			})

			It("still stores the failed record", func() {
				got, err := db.GetDocument("doc-3")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Status).To(Equal(StatusFailed))
			})
		})

		When("the earlier attempt failed", func() {
			BeforeEach(func() {
				doc.Status = StatusFailed
			})

			JustBeforeEach(func() {
				retry := &Document{ID: "doc-4", Hash: "abc123", Status: StatusFailed}
				Expect(db.SaveDocument(retry)).To(Succeed())
			})

			It("points the hash at the latest failure", func() {
				got, err := db.FindByHash("abc123")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal("doc-4"))
			})
		})
	})

	Describe("lookups that miss", func() {
		It("returns ErrNotFound for an unknown ID", func() {
			_, err := db.GetDocument("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("returns ErrNotFound for an unknown hash", func() {
			_, err := db.FindByHash("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListDocuments", func() {
		It("returns an empty list when nothing was recorded", func() {
			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})

		It("returns documents newest first", func() {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveDocument(&Document{ID: "a", ProcessedAt: base})).To(Succeed())
			Expect(db.SaveDocument(&Document{ID: "b", ProcessedAt: base.Add(2 * time.Hour)})).To(Succeed())
			Expect(db.SaveDocument(&Document{ID: "c", ProcessedAt: base.Add(time.Hour)})).To(Succeed())

			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(3))
			Expect(docs[0].ID).To(Equal("b"))
			Expect(docs[1].ID).To(Equal("c"))
			Expect(docs[2].ID).To(Equal("a"))
		})
	})
})
