package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/invoicepilot/invoicepilot/internal/extraction"
)

// multipartUpload builds a multipart body with one part per file under the
// "files" field
func multipartUpload(files map[string][]byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		header.Set("Content-Type", "application/pdf")
		part, err := writer.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(writer.Close()).NotTo(HaveOccurred())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		store       *mockStore
		extractor   *mockExtractor
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		store = newMockStore()
		extractor = newMockExtractor()
		service = NewServiceWithDeps(store, extractor, &seqIDGenerator{}, &fixedTimeSource{})
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("should return the HTML interface", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("InvoicePilot"))
		})
	})

	Describe("handleListInvoices", func() {
		When("invoices exist", func() {
			BeforeEach(func() {
				store.invoices = []StoredInvoice{
					{ID: "id2", FileName: "b.pdf", Status: StatusPending},
					{ID: "id1", FileName: "a.pdf", Status: StatusPending},
				}
			})

			It("should return all invoices as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var invoices []StoredInvoice
				Expect(json.NewDecoder(resp.Body).Decode(&invoices)).To(Succeed())
				Expect(invoices).To(HaveLen(2))
				Expect(invoices[0].ID).To(Equal("id2"))
			})
		})

		When("no invoices exist", func() {
			It("should return an empty JSON array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})
	})

	Describe("handleUploadInvoices", func() {
		When("a valid file is uploaded", func() {
			It("should return the completed record", func() {
				body, contentType := multipartUpload(map[string][]byte{"invoice.pdf": []byte("%PDF-1.4")})
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var results []StoredInvoice
				Expect(json.NewDecoder(resp.Body).Decode(&results)).To(Succeed())
				Expect(results).To(HaveLen(1))
				Expect(results[0].Status).To(Equal(StatusCompleted))
				Expect(results[0].ExtractedData).NotTo(BeNil())
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				extractor.extractErr = errors.New("model unavailable")
			})

			It("should still return 201 with an Error record", func() {
				body, contentType := multipartUpload(map[string][]byte{"invoice.pdf": []byte("%PDF-1.4")})
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var results []StoredInvoice
				Expect(json.NewDecoder(resp.Body).Decode(&results)).To(Succeed())
				Expect(results[0].Status).To(Equal(StatusError))
				Expect(results[0].ErrorMessage).To(ContainSubstring("AI processing failed."))
			})
		})

		When("no file is provided", func() {
			It("should return 400", func() {
				body, contentType := multipartUpload(map[string][]byte{})
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleGetInvoice", func() {
		When("the invoice exists", func() {
			BeforeEach(func() {
				store.invoices = []StoredInvoice{{ID: "id1", FileName: "a.pdf", Status: StatusPending}}
			})

			It("should return the invoice", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/id1")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var inv StoredInvoice
				Expect(json.NewDecoder(resp.Body).Decode(&inv)).To(Succeed())
				Expect(inv.ID).To(Equal("id1"))
			})
		})

		When("the invoice does not exist", func() {
			It("should return 404 with a JSON error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/missing")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

				var errBody map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&errBody)).To(Succeed())
				Expect(errBody).To(HaveKey("error"))
			})
		})
	})

	Describe("handleSaveInvoice", func() {
		var form InvoiceForm

		BeforeEach(func() {
			store.invoices = []StoredInvoice{{
				ID:       "id1",
				FileName: "a.pdf",
				Status:   StatusCompleted,
				ExtractedData: &extraction.InvoiceData{
					InvoiceNumber: "OLD",
					VendorName:    "Old",
					Date:          "2024-01-01",
					LineItems:     []extraction.LineItem{{Description: "Old", Amount: 1}},
					TotalAmount:   1,
				},
			}}
			form = InvoiceForm{
				InvoiceNumber: "INV-9",
				VendorName:    "Acme",
				Date:          "2024-02-02",
				LineItems:     []LineItemForm{{Description: "Widget", Amount: 10}},
				TotalAmount:   10,
			}
		})

		putForm := func(id string) *http.Response {
			payload, err := json.Marshal(form)
			Expect(err).NotTo(HaveOccurred())
			req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/invoices/"+id, bytes.NewReader(payload))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("the form is valid", func() {
			It("should save and return the updated invoice", func() {
				resp := putForm("id1")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var inv StoredInvoice
				Expect(json.NewDecoder(resp.Body).Decode(&inv)).To(Succeed())
				Expect(inv.Status).To(Equal(StatusCompleted))
				Expect(inv.ExtractedData.InvoiceNumber).To(Equal("INV-9"))
			})
		})

		When("the form fails validation", func() {
			BeforeEach(func() {
				form.InvoiceNumber = ""
			})

			It("should return 422 and leave the record untouched", func() {
				resp := putForm("id1")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				stored, err := store.GetByID("id1")
				Expect(err).NotTo(HaveOccurred())
				Expect(stored.ExtractedData.InvoiceNumber).To(Equal("OLD"))
			})
		})

		When("the invoice does not exist", func() {
			It("should return 404", func() {
				resp := putForm("missing")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleDeleteInvoice", func() {
		BeforeEach(func() {
			store.invoices = []StoredInvoice{{ID: "id1", FileName: "a.pdf", Status: StatusPending}}
		})

		It("should delete the invoice and return 204", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/invoices/id1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(store.invoices).To(BeEmpty())
		})
	})

	Describe("handleExportInvoice", func() {
		BeforeEach(func() {
			store.invoices = []StoredInvoice{{
				ID:       "id1",
				FileName: "scan.pdf",
				Status:   StatusCompleted,
				ExtractedData: &extraction.InvoiceData{
					InvoiceNumber: "INV-1",
					VendorName:    "Acme",
					Date:          "2024-01-01",
					LineItems:     []extraction.LineItem{{Description: "Widget", Amount: 10}},
					TotalAmount:   10,
				},
			}}
		})

		When("form values are posted", func() {
			It("should return the serialized form values as an attachment", func() {
				form := InvoiceForm{
					InvoiceNumber: "EDITED",
					VendorName:    "Acme",
					Date:          "2024-01-01",
					LineItems:     []LineItemForm{{Description: "Widget", Amount: 10}},
					TotalAmount:   10,
				}
				payload, err := json.Marshal(form)
				Expect(err).NotTo(HaveOccurred())

				resp, err := http.Post(ghttpServer.URL()+"/api/invoices/id1/export", "application/json", bytes.NewReader(payload))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("scan_quickbooks.json"))

				var data extraction.InvoiceData
				Expect(json.NewDecoder(resp.Body).Decode(&data)).To(Succeed())
				Expect(data.InvoiceNumber).To(Equal("EDITED"))
			})
		})

		When("the body is empty", func() {
			It("should fall back to the persisted extracted data", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices/id1/export", "application/json", nil)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var data extraction.InvoiceData
				Expect(json.NewDecoder(resp.Body).Decode(&data)).To(Succeed())
				Expect(data.InvoiceNumber).To(Equal("INV-1"))
			})
		})

		When("the invoice does not exist", func() {
			It("should return 404", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices/missing/export", "application/json", nil)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleSuggestCorrections", func() {
		When("the extractor returns a correction", func() {
			BeforeEach(func() {
				extractor.correction = &extraction.Correction{
					CorrectedData: map[string]any{"vendorName": "Acme Corp"},
					Confidence:    0.85,
				}
			})

			It("should return the correction", func() {
				payload := []byte(`{"invoiceData":{"vendorName":"Acme"}}`)
				resp, err := http.Post(ghttpServer.URL()+"/api/corrections", "application/json", bytes.NewReader(payload))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var correction extraction.Correction
				Expect(json.NewDecoder(resp.Body).Decode(&correction)).To(Succeed())
				Expect(correction.Confidence).To(Equal(0.85))
			})
		})

		When("invoiceData is missing", func() {
			It("should return 400", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/corrections", "application/json", strings.NewReader(`{}`))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the extractor fails", func() {
			BeforeEach(func() {
				extractor.correctErr = &extraction.Error{Op: "correct", Msg: "no response"}
			})

			It("should return 502", func() {
				payload := []byte(`{"invoiceData":{"vendorName":"Acme"}}`)
				resp, err := http.Post(ghttpServer.URL()+"/api/corrections", "application/json", bytes.NewReader(payload))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept requests with valid credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/invoices", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
