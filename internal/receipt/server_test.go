package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-sorter/internal/domain"
	"github.com/zombor/receipt-sorter/internal/ledger"
)

func uploadBody(filename string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		mocks       *pipelineMocks
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		mocks = newPipelineMocks()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		server = NewServerWithMux(mocks.service(), auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	Describe("handleListDocuments", func() {
		When("documents exist", func() {
			BeforeEach(func() {
				Expect(mocks.db.SaveDocument(&Document{ID: "1", Hash: "h1", Status: StatusProcessed, Vendor: "Starbucks"})).To(Succeed())
				Expect(mocks.db.SaveDocument(&Document{ID: "2", Hash: "h2", Status: StatusFailed, FailureKind: domain.FailureUnreadable})).To(Succeed())
			})

			It("should return them as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/documents")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))

				var docs []*Document
				Expect(json.NewDecoder(resp.Body).Decode(&docs)).To(Succeed())
				Expect(docs).To(HaveLen(2))
				Expect(docs[0].Vendor).To(Equal("Starbucks"))
				Expect(docs[1].FailureKind).To(Equal(domain.FailureUnreadable))
			})
		})

		When("the index fails", func() {
			BeforeEach(func() {
				mocks.db.listErr = errors.New("database closed")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/documents")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleGetDocument", func() {
		BeforeEach(func() {
			Expect(mocks.db.SaveDocument(&Document{ID: "abc", Hash: "h", Status: StatusProcessed, Currency: "CAD"})).To(Succeed())
		})

		It("should return the document", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/abc")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var doc Document
			Expect(json.NewDecoder(resp.Body).Decode(&doc)).To(Succeed())
			Expect(doc.Currency).To(Equal("CAD"))
		})

		It("should return Not Found for an unknown ID", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleUploadDocument", func() {
		post := func(filename string, content []byte) *http.Response {
			body, contentType := uploadBody(filename, content)
			resp, err := http.Post(ghttpServer.URL()+"/api/documents", contentType, body)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("the document is processed", func() {
			It("should return status Created with the outcome", func() {
				resp := post("receipt.pdf", []byte("pdf data"))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				var doc Document
				Expect(json.NewDecoder(resp.Body).Decode(&doc)).To(Succeed())
				Expect(doc.Status).To(Equal(StatusProcessed))
				Expect(doc.Vendor).To(Equal("Starbucks"))
				Expect(mocks.storage.files).To(HaveKey("id-1_receipt.pdf"))
			})
		})

		When("the content was already processed", func() {
			BeforeEach(func() {
				svc := mocks.service()
				_, err := svc.Upload(context.Background(), "first.pdf", []byte("same bytes"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return status OK with the earlier outcome", func() {
				resp := post("second.pdf", []byte("same bytes"))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var doc Document
				Expect(json.NewDecoder(resp.Body).Decode(&doc)).To(Succeed())
				Expect(doc.SourcePath).To(Equal("/source/id-1_first.pdf"))
			})
		})

		When("a stage fails", func() {
			BeforeEach(func() {
				mocks.acquirer.err = domain.Tag(domain.FailureUnreadable, domain.ErrUnreadableDocument)
			})

			It("should return status Unprocessable Entity with the failure", func() {
				resp := post("blank.pdf", []byte("blank"))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				var doc Document
				Expect(json.NewDecoder(resp.Body).Decode(&doc)).To(Succeed())
				Expect(doc.Status).To(Equal(StatusFailed))
				Expect(doc.FailureKind).To(Equal(domain.FailureUnreadable))
			})
		})

		When("the file type is not supported", func() {
			It("should return status Bad Request", func() {
				resp := post("notes.txt", []byte("hello"))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var body map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body["error"]).To(ContainSubstring("unsupported file type"))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("note", "nothing here")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/documents", writer.FormDataContentType(), body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleGetLedger", func() {
		It("should return an empty ledger with totals", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/ledgers/USD")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body struct {
				Currency  string            `json:"currency"`
				Rows      []json.RawMessage `json:"rows"`
				Total     string            `json:"total"`
				Breakdown []json.RawMessage `json:"breakdown"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Currency).To(Equal("USD"))
			Expect(body.Rows).NotTo(BeNil())
			Expect(body.Rows).To(BeEmpty())
			Expect(body.Total).To(Equal("0"))
			Expect(body.Breakdown).To(HaveLen(len(domain.Categories())))
		})
	})

	Describe("handleSummary", func() {
		BeforeEach(func() {
			mocks.ledger.summary = ledger.Summary{
				TotalReceipts: 2,
				Currencies: map[string]ledger.CurrencySummary{
					"CAD": {Count: 2, Total: decimal.RequireFromString("40.5")},
				},
			}
		})

		It("should return the ledger totals", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/summary")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring(`"CAD"`))
			Expect(string(raw)).To(ContainSubstring(`"40.5"`))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Receipt Sorter"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/documents", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/documents", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should answer preflight requests without credentials", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/documents", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
		})
	})
})
