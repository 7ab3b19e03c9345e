package receipt

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-extractor/internal/expense"
)

// multipartBody builds a form with a single "file" part
func multipartBody(filename, contentType string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		extractor   *mockExtractor
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = newMockExtractor()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, extractor, storage, &mockIDGenerator{id: "test-id"}, &mockTimeSource{now: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)})
		server := NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	post := func(path, filename, contentType string, data []byte) *http.Response {
		body, formType := multipartBody(filename, contentType, data)
		resp, err := http.Post(ghttpServer.URL()+path, formType, body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decodeError := func(resp *http.Response) string {
		defer resp.Body.Close()
		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		return body["error"]
	}

	Describe("POST /api/extract", func() {
		It("should return the extraction result without storing it", func() {
			resp := post("/api/extract", "coffee.jpg", "image/jpeg", []byte("image"))
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var result expense.Result
			Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
			Expect(result.Vendor).To(Equal("Starbucks"))
			Expect(result.ParsedBy).To(Equal(expense.ParsedByBasic))
			Expect(result.Amount.StringFixed(2)).To(Equal("4.50"))
			Expect(db.receipts).To(BeEmpty())
		})

		It("should infer the content type from the extension", func() {
			resp := post("/api/extract", "IMG_0001.HEIC", "application/octet-stream", []byte("image"))
			resp.Body.Close()
			Expect(extractor.contentType).To(Equal("image/heic"))
		})

		When("the image cannot be loaded", func() {
			BeforeEach(func() {
				extractor.err = expense.NewError("LoadDocument", expense.ErrImageLoad, nil, "empty input")
			})

			It("should return Bad Request", func() {
				resp := post("/api/extract", "coffee.jpg", "image/jpeg", []byte("image"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(resp)).To(ContainSubstring("image could not be loaded"))
			})
		})

		When("escalation is required but no AI service is configured", func() {
			BeforeEach(func() {
				extractor.err = expense.NewError("ExtractText", expense.ErrMissingCredential, nil, "")
			})

			It("should return Service Unavailable", func() {
				resp := post("/api/extract", "coffee.jpg", "image/jpeg", []byte("image"))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			})
		})

		When("OCR fails", func() {
			BeforeEach(func() {
				extractor.err = expense.NewError("Recognize", expense.ErrOCRFailed, nil, "")
			})

			It("should return Bad Gateway", func() {
				resp := post("/api/extract", "coffee.jpg", "image/jpeg", []byte("image"))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			})
		})

		It("should reject requests without a file", func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			Expect(writer.WriteField("note", "hello")).To(Succeed())
			Expect(writer.Close()).To(Succeed())

			resp, err := http.Post(ghttpServer.URL()+"/api/extract", writer.FormDataContentType(), body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decodeError(resp)).To(Equal("No file was selected. Please choose a file to upload."))
		})
	})

	Describe("POST /api/receipts", func() {
		It("should store the receipt and return it", func() {
			resp := post("/api/receipts", "coffee.jpg", "image/jpeg", []byte("image"))
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var receipt Receipt
			Expect(json.NewDecoder(resp.Body).Decode(&receipt)).To(Succeed())
			Expect(receipt.ID).To(Equal("test-id"))
			Expect(receipt.Expense.Vendor).To(Equal("Starbucks"))
			Expect(db.receipts).To(HaveKey("test-id"))
		})
	})

	Describe("GET /api/receipts", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Expense: expense.Result{Category: expense.FoodAndDrink}}
			db.receipts["id2"] = &Receipt{ID: "id2", Expense: expense.Result{Category: expense.Travel}}
		})

		It("should return all receipts", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var receipts []*Receipt
			Expect(json.NewDecoder(resp.Body).Decode(&receipts)).To(Succeed())
			Expect(receipts).To(HaveLen(2))
		})

		It("should filter by category", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts?category=Travel")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var receipts []*Receipt
			Expect(json.NewDecoder(resp.Body).Decode(&receipts)).To(Succeed())
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].ID).To(Equal("id2"))
		})

		It("should reject unknown categories", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts?category=Pets")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		It("should return the receipt", func() {
			db.receipts["id1"] = &Receipt{ID: "id1"}
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/id1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should return Not Found for unknown IDs", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/receipts/{id}/file", func() {
		It("should return the stored file with its content type", func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Filename: "id1_a.png", ContentType: "image/png"}
			storage.files["id1_a.png"] = []byte("png bytes")

			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/id1/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png bytes")))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		It("should delete the receipt", func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Filename: "id1_a.png"}
			storage.files["id1_a.png"] = []byte("x")

			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/receipts/id1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
		})

		It("should return Not Found for unknown IDs", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/receipts/missing", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/categories", func() {
		It("should list the category set", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/categories")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var names []string
			Expect(json.NewDecoder(resp.Body).Decode(&names)).To(Succeed())
			Expect(names).To(HaveLen(10))
			Expect(names[0]).To(Equal("Food & Drink"))
			Expect(names[9]).To(Equal("Other"))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should leave the category list public", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/categories")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
