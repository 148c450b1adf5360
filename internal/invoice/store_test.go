package invoice

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/invoicepilot/invoicepilot/internal/extraction"
)

var _ = Describe("BoltStore", func() {
	var (
		dbPath string
		store  *BoltStore
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		store, err = NewBoltStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("List", func() {
		When("the store is fresh", func() {
			It("should return an empty collection, not an error", func() {
				invoices, err := store.List()
				Expect(err).NotTo(HaveOccurred())
				Expect(invoices).To(BeEmpty())
			})
		})

		When("invoices were added", func() {
			BeforeEach(func() {
				Expect(store.Add(StoredInvoice{ID: "first", FileName: "a.pdf", Status: StatusPending})).To(Succeed())
				Expect(store.Add(StoredInvoice{ID: "second", FileName: "b.pdf", Status: StatusPending})).To(Succeed())
			})

			It("should return them newest-first", func() {
				invoices, err := store.List()
				Expect(err).NotTo(HaveOccurred())
				Expect(invoices).To(HaveLen(2))
				Expect(invoices[0].ID).To(Equal("second"))
				Expect(invoices[1].ID).To(Equal("first"))
			})
		})
	})

	Describe("Add and GetByID", func() {
		var record StoredInvoice

		BeforeEach(func() {
			record = StoredInvoice{
				ID:         "test-id",
				FileName:   "invoice.pdf",
				UploadDate: "2024-01-15T10:00:00Z",
				Status:     StatusCompleted,
				ExtractedData: &extraction.InvoiceData{
					InvoiceNumber:  "INV-42",
					VendorName:     "Acme",
					Date:           "2024-01-15",
					LineItems:      []extraction.LineItem{{Description: "Widget", Amount: 25.99}},
					TotalAmount:    25.99,
					TaxInformation: "VAT 20%",
				},
			}
			Expect(store.Add(record)).To(Succeed())
		})

		It("should round-trip the record unchanged", func() {
			got, err := store.GetByID("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(*got).To(Equal(record))
		})

		It("should survive reopening the database", func() {
			Expect(store.Close()).To(Succeed())
			var err error
			store, err = NewBoltStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			got, err := store.GetByID("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(*got).To(Equal(record))
		})
	})

	Describe("GetByID", func() {
		When("the invoice does not exist", func() {
			It("should return ErrNotFound", func() {
				_, err := store.GetByID("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("Update", func() {
		BeforeEach(func() {
			Expect(store.Add(StoredInvoice{
				ID:         "a",
				FileName:   "x.pdf",
				UploadDate: "2024-01-01T00:00:00Z",
				Status:     StatusPending,
			})).To(Succeed())
		})

		When("the id exists", func() {
			It("should replace the record in place", func() {
				updated := StoredInvoice{
					ID:         "a",
					FileName:   "x.pdf",
					UploadDate: "2024-01-01T00:00:00Z",
					Status:     StatusCompleted,
					ExtractedData: &extraction.InvoiceData{
						InvoiceNumber: "INV-1",
						VendorName:    "Acme",
						Date:          "2024-01-01",
						LineItems:     []extraction.LineItem{{Description: "Widget", Amount: 10}},
						TotalAmount:   10,
					},
				}
				Expect(store.Update(updated)).To(Succeed())

				invoices, err := store.List()
				Expect(err).NotTo(HaveOccurred())
				Expect(invoices).To(HaveLen(1))
				Expect(invoices[0]).To(Equal(updated))
			})
		})

		When("the id does not exist", func() {
			It("should change nothing", func() {
				before, err := store.List()
				Expect(err).NotTo(HaveOccurred())

				Expect(store.Update(StoredInvoice{ID: "ghost", Status: StatusCompleted})).To(Succeed())

				after, err := store.List()
				Expect(err).NotTo(HaveOccurred())
				Expect(after).To(Equal(before))
			})
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			Expect(store.Add(StoredInvoice{ID: "a", FileName: "a.pdf", Status: StatusPending})).To(Succeed())
			Expect(store.Add(StoredInvoice{ID: "b", FileName: "b.pdf", Status: StatusPending})).To(Succeed())
		})

		It("should remove only the matching record", func() {
			Expect(store.Delete("a")).To(Succeed())
			invoices, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(invoices).To(HaveLen(1))
			Expect(invoices[0].ID).To(Equal("b"))
		})

		It("should be idempotent", func() {
			Expect(store.Delete("a")).To(Succeed())
			once, err := store.List()
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete("a")).To(Succeed())
			twice, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(twice).To(Equal(once))
		})

		It("should tolerate unknown ids", func() {
			Expect(store.Delete("ghost")).To(Succeed())
			invoices, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(invoices).To(HaveLen(2))
		})
	})
})
