package receipt

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-sorter/internal/domain"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("List", func() {
		BeforeEach(func() {
			for _, name := range []string{"b.pdf", "a.JPG", "notes.txt", ".hidden.pdf", "c.heic"} {
				Expect(os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o644)).To(Succeed())
			}
			Expect(os.Mkdir(filepath.Join(tmpDir, "nested.pdf"), 0o755)).To(Succeed())
		})

		It("returns supported top-level files in sorted order", func() {
			names, err := storage.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"a.JPG", "b.pdf", "c.heic"}))
		})
	})

	Describe("Load", func() {
		var mtime time.Time

		BeforeEach(func() {
			path := filepath.Join(tmpDir, "scan.pdf")
			Expect(os.WriteFile(path, []byte("%PDF"), 0o644)).To(Succeed())
			mtime = time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
			Expect(os.Chtimes(path, mtime, mtime)).To(Succeed())
		})

		It("reads the document with its kind and modification time", func() {
			doc, err := storage.Load("scan.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Path).To(Equal(filepath.Join(tmpDir, "scan.pdf")))
			Expect(doc.Data).To(Equal([]byte("%PDF")))
			Expect(doc.Kind).To(Equal(domain.KindDocument))
			Expect(doc.ModTime.Equal(mtime)).To(BeTrue())
		})

		It("fails for missing files", func() {
			_, err := storage.Load("missing.pdf")
			Expect(err).To(HaveOccurred())
		})

		It("fails for unsupported types", func() {
			_, err := storage.Load("notes.txt")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Save", func() {
		It("writes the file and returns its name", func() {
			name, err := storage.Save("upload.jpg", []byte("data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("upload.jpg"))
			Expect(filepath.Join(tmpDir, "upload.jpg")).To(BeAnExistingFile())
		})

		It("never replaces an existing file", func() {
			_, err := storage.Save("upload.jpg", []byte("first"))
			Expect(err).NotTo(HaveOccurred())
			_, err = storage.Save("upload.jpg", []byte("second"))
			Expect(err).To(HaveOccurred())

			data, err := os.ReadFile(filepath.Join(tmpDir, "upload.jpg"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("first"))
		})

		It("keeps writes inside the folder", func() {
			name, err := storage.Save("../escape.pdf", []byte("x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("escape.pdf"))
			Expect(filepath.Join(tmpDir, "escape.pdf")).To(BeAnExistingFile())
		})
	})
})

var _ = Describe("sanitizeFilename", func() {
	DescribeTable("cleaning uploaded names",
		func(in, want string) {
			Expect(sanitizeFilename(in)).To(Equal(want))
		},
		Entry("plain", "receipt.pdf", "receipt.pdf"),
		Entry("phone noise", "IMG_2024 (1) [edited].HEIC", "IMG_2024 1 edited.heic"),
		Entry("only junk", "@@@.jpg", "receipt.jpg"),
		Entry("long", "a123456789b123456789c123456789d123456789e123456789f123.png", "a123456789b123456789c123456789d123456789e123456789.png"),
	)
})
