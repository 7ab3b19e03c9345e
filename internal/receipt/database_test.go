package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-extractor/internal/expense"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	newReceipt := func(id string, created time.Time) *Receipt {
		return &Receipt{
			ID:          id,
			Filename:    id + "_receipt.jpg",
			ContentType: "image/jpeg",
			Expense: expense.Result{
				Vendor:     "Starbucks",
				Amount:     decimal.RequireFromString("4.50"),
				Date:       "2024-01-15",
				Category:   expense.FoodAndDrink,
				Confidence: 70,
				ParsedBy:   expense.ParsedByBasic,
				Reasoning:  "Basic regex pattern matching",
				Text:       "STARBUCKS\nTOTAL: Rs 4.50",
				Warnings:   []string{"Image appears too dark - try better lighting"},
			},
			CreatedAt: created,
			UpdatedAt: created,
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveReceipt and GetReceipt", func() {
		It("should round-trip the extracted expense", func() {
			saved := newReceipt("test-id", time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC))
			Expect(db.SaveReceipt(saved)).To(Succeed())

			got, err := db.GetReceipt("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Expense.Vendor).To(Equal("Starbucks"))
			Expect(got.Expense.Amount.Equal(saved.Expense.Amount)).To(BeTrue())
			Expect(got.Expense.Category).To(Equal(expense.FoodAndDrink))
			Expect(got.Expense.ParsedBy).To(Equal(expense.ParsedByBasic))
			Expect(got.Expense.Warnings).To(Equal(saved.Expense.Warnings))
			Expect(got.CreatedAt.Equal(saved.CreatedAt)).To(BeTrue())
		})

		It("should overwrite an existing receipt", func() {
			r := newReceipt("test-id", time.Now())
			Expect(db.SaveReceipt(r)).To(Succeed())
			r.Expense.Vendor = "Blue Tokai"
			Expect(db.SaveReceipt(r)).To(Succeed())

			got, err := db.GetReceipt("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Expense.Vendor).To(Equal("Blue Tokai"))
		})

		It("should return ErrNotFound for unknown IDs", func() {
			_, err := db.GetReceipt("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListReceipts", func() {
		It("should return an empty list for an empty database", func() {
			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
			Expect(receipts).NotTo(BeNil())
		})

		It("should return receipts newest first", func() {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveReceipt(newReceipt("a", base))).To(Succeed())
			Expect(db.SaveReceipt(newReceipt("b", base.Add(2*time.Hour)))).To(Succeed())
			Expect(db.SaveReceipt(newReceipt("c", base.Add(time.Hour)))).To(Succeed())

			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			ids := make([]string, len(receipts))
			for i, r := range receipts {
				ids[i] = r.ID
			}
			Expect(ids).To(Equal([]string{"b", "c", "a"}))
		})
	})

	Describe("DeleteReceipt", func() {
		It("should remove the receipt", func() {
			Expect(db.SaveReceipt(newReceipt("test-id", time.Now()))).To(Succeed())
			Expect(db.DeleteReceipt("test-id")).To(Succeed())

			_, err := db.GetReceipt("test-id")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("should return ErrNotFound for unknown IDs", func() {
			Expect(errors.Is(db.DeleteReceipt("missing"), ErrNotFound)).To(BeTrue())
		})
	})

	It("should persist across reopen", func() {
		Expect(db.SaveReceipt(newReceipt("test-id", time.Now()))).To(Succeed())
		Expect(db.Close()).To(Succeed())

		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		_, err = db.GetReceipt("test-id")
		Expect(err).NotTo(HaveOccurred())
	})
})
