package receipt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-sorter/internal/domain"
	"github.com/zombor/receipt-sorter/internal/extraction"
	"github.com/zombor/receipt-sorter/internal/ledger"
	"github.com/zombor/receipt-sorter/internal/placement"
	"github.com/zombor/receipt-sorter/internal/scanning"
)

// textPages is a single page document whose native text is the file content
type textPages struct {
	text string
}

func (p textPages) NumPage() int { return 1 }

func (p textPages) Text(page int) (string, error) { return p.text, nil }

func (p textPages) ImagePNG(page int, dpi float64) ([]byte, error) {
	return nil, errors.New("rendering not supported")
}

func (p textPages) Close() error { return nil }

type noRecognizer struct{}

func (noRecognizer) Recognize(ctx context.Context, png []byte) (string, error) {
	return "", errors.New("no recognizer configured")
}

// routingOracle answers classification prompts and extraction prompts with
// separate replies
type routingOracle struct {
	extraction     string
	classification string
}

func (o *routingOracle) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.HasPrefix(prompt, "Classify") {
		return o.classification, nil
	}
	return o.extraction, nil
}

func (o *routingOracle) Close() error { return nil }

var _ = Describe("Pipeline", func() {
	var (
		sourceDir string
		outputDir string
		db        *BoltDB
		oracle    *routingOracle
		ledgers   *ledger.Engine
		service   *Service
	)

	BeforeEach(func() {
		sourceDir = GinkgoT().TempDir()
		outputDir = GinkgoT().TempDir()

		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "index.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		oracle = &routingOracle{
			extraction:     `{"total_amount": "15.50", "currency": "CAD", "date": "2024-01-16", "vendor": "Starbucks", "description": "Coffee"}`,
			classification: `{"category": "Meals & Entertainment", "confidence": 92}`,
		}
	})

	JustBeforeEach(func() {
		storage, err := NewLocalStorage(sourceDir)
		Expect(err).NotTo(HaveOccurred())

		placer, err := placement.NewEngine(outputDir, nil)
		Expect(err).NotTo(HaveOccurred())

		ledgers = ledger.NewEngine(outputDir)

		acquirer := scanning.NewAcquirer(noRecognizer{}, scanning.WithOpener(func(data []byte) (scanning.PageSource, error) {
			return textPages{text: string(data)}, nil
		}))

		service = NewService(db, storage, Stages{
			Acquirer:   acquirer,
			Extractor:  extraction.NewFieldExtractor(oracle),
			Classifier: extraction.NewClassifier(oracle, extraction.DefaultThreshold, time.Second, nil),
			Placer:     placer,
			Ledger:     ledgers,
		}, WithCurrencies("CAD", "USD"))
	})

	When("a readable receipt is in the source folder", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(filepath.Join(sourceDir, "scan001.pdf"), []byte("STARBUCKS STORE #123\nTOTAL $15.50\n2024-01-16"), 0o644)).To(Succeed())
		})

		It("files it under its currency and records it in the ledger", func() {
			run, err := service.ProcessFolder(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Succeeded).To(Equal(1))

			placed := filepath.Join(outputDir, "CAD", "2024-01-16_Starbucks_15.50.pdf")
			Expect(placed).To(BeAnExistingFile())

			book, err := ledgers.Load("CAD")
			Expect(err).NotTo(HaveOccurred())
			Expect(book.Rows).To(HaveLen(1))
			Expect(book.Rows[0].Vendor).To(Equal("Starbucks"))
			Expect(book.Rows[0].Category).To(Equal(domain.MealsEntertainment))
			Expect(book.Rows[0].FileName).To(Equal("2024-01-16_Starbucks_15.50.pdf"))
			Expect(book.Rows[0].Notes).To(Equal("Confidence: 92%"))
			Expect(book.Total().Equal(decimal.RequireFromString("15.50"))).To(BeTrue())
		})

		It("leaves the source in place", func() {
			_, err := service.ProcessFolder(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Join(sourceDir, "scan001.pdf")).To(BeAnExistingFile())
		})

		It("reports the file as unchanged on the next run", func() {
			_, err := service.ProcessFolder(context.Background())
			Expect(err).NotTo(HaveOccurred())

			run, err := service.ProcessFolder(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Unchanged).To(Equal(1))

			book, err := ledgers.Load("CAD")
			Expect(err).NotTo(HaveOccurred())
			Expect(book.Rows).To(HaveLen(1))
		})

		It("includes it in the ledger summary", func() {
			_, err := service.ProcessFolder(context.Background())
			Expect(err).NotTo(HaveOccurred())

			summary, err := service.Summary()
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.TotalReceipts).To(Equal(1))
			Expect(summary.Currencies["CAD"].Categories).To(HaveKey(domain.MealsEntertainment))
		})
	})

	When("the classification is uncertain", func() {
		BeforeEach(func() {
			oracle.classification = `{"category": "Other", "confidence": 40}`
			Expect(os.WriteFile(filepath.Join(sourceDir, "unclear.pdf"), []byte("HANDWRITTEN NOTE $15.50 2024-01-16"), 0o644)).To(Succeed())
		})

		It("places it in the review folder and still records it", func() {
			run, err := service.ProcessFolder(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Review).To(Equal(1))

			Expect(filepath.Join(outputDir, placement.ReviewFolder, "2024-01-16_Starbucks_15.50.pdf")).To(BeAnExistingFile())

			book, err := ledgers.Load("CAD")
			Expect(err).NotTo(HaveOccurred())
			Expect(book.Rows).To(HaveLen(1))
			Expect(book.Rows[0].Notes).To(Equal("Confidence: 40%"))
		})
	})

	When("the document has no text", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(filepath.Join(sourceDir, "blank.pdf"), []byte("   "), 0o644)).To(Succeed())
		})

		It("fails it as unreadable without placing anything", func() {
			run, err := service.ProcessFolder(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Failed).To(Equal(1))
			Expect(run.FailuresByKind).To(HaveKeyWithValue(domain.FailureUnreadable, 1))

			entries, err := os.ReadDir(filepath.Join(outputDir, "CAD"))
			Expect(os.IsNotExist(err)).To(BeTrue())
			Expect(entries).To(BeEmpty())
		})
	})

	When("the same receipt arrives twice under different names", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(filepath.Join(sourceDir, "a.pdf"), []byte("STARBUCKS copy one"), 0o644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(sourceDir, "b.pdf"), []byte("STARBUCKS copy two"), 0o644)).To(Succeed())
		})

		It("keeps both files and flags the duplicate in the ledger", func() {
			run, err := service.ProcessFolder(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Succeeded).To(Equal(2))

			Expect(filepath.Join(outputDir, "CAD", "2024-01-16_Starbucks_15.50.pdf")).To(BeAnExistingFile())
			Expect(filepath.Join(outputDir, "CAD", "2024-01-16_Starbucks_15.50_1.pdf")).To(BeAnExistingFile())

			book, err := ledgers.Load("CAD")
			Expect(err).NotTo(HaveOccurred())
			Expect(book.Rows).To(HaveLen(2))
			Expect(book.Rows[0].Notes + book.Rows[1].Notes).To(ContainSubstring("Possible duplicate of"))
		})
	})
})
