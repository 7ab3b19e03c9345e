package receipt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	openai "github.com/sashabaranov/go-openai"

	"github.com/zombor/receipt-extractor/internal/expense"
	"github.com/zombor/receipt-extractor/internal/perplexity"
	"github.com/zombor/receipt-extractor/internal/pipeline"
	"github.com/zombor/receipt-extractor/internal/ratelimit"
	"github.com/zombor/receipt-extractor/internal/receipt"
)

// stubEngine returns fixed text for every image
type stubEngine struct {
	text string
}

func (s *stubEngine) Recognize(ctx context.Context, pngData []byte) (string, error) {
	return s.text, nil
}

func (s *stubEngine) Close() error {
	return nil
}

func grayPNG() []byte {
	img := image.NewGray(image.Rect(0, 0, 320, 320))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Integration", func() {
	var (
		db        receipt.DB
		store     receipt.Storage
		engine    *stubEngine
		aiServer  *ghttp.Server
		apiServer *ghttp.Server
		server    *receipt.Server
		imageData []byte
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = receipt.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		store, err = receipt.NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		aiServer = ghttp.NewServer()
		client := perplexity.NewClientWithBackoff(perplexity.Config{
			APIKey:  "test-key",
			BaseURL: aiServer.URL(),
			Timeout: 5 * time.Second,
		}, perplexity.Backoff{
			Base:        time.Millisecond,
			MaxAttempts: 3,
			Jitter:      func() time.Duration { return 0 },
		})

		engine = &stubEngine{}
		p := pipeline.New(engine, client, ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow), pipeline.Config{})
		server = receipt.NewServer(receipt.NewService(db, p, store), receipt.BasicAuth{})

		apiServer = ghttp.NewServer()
		imageData = grayPNG()
	})

	AfterEach(func() {
		apiServer.Close()
		aiServer.Close()
		db.Close()
	})

	upload := func(data []byte) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(apiServer.URL()+"/api/receipts", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("stores a receipt the basic extractor can handle without calling the AI service", func() {
		apiServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP)
		engine.text = "STARBUCKS\n123 MAIN ST\nTOTAL: Rs 4.50\n01/15/2024"

		resp := upload(imageData)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var saved receipt.Receipt
		Expect(json.NewDecoder(resp.Body).Decode(&saved)).To(Succeed())
		Expect(saved.Expense.Vendor).To(Equal("Starbucks"))
		Expect(saved.Expense.Amount.StringFixed(2)).To(Equal("4.50"))
		Expect(saved.Expense.Date).To(Equal("2024-01-15"))
		Expect(saved.Expense.ParsedBy).To(Equal(expense.ParsedByBasic))
		Expect(saved.Expense.Confidence).To(Equal(70))
		Expect(aiServer.ReceivedRequests()).To(BeEmpty())

		stored, err := db.GetReceipt(saved.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Expense.Vendor).To(Equal("Starbucks"))

		fileResp, err := http.Get(apiServer.URL() + "/api/receipts/" + saved.ID + "/file")
		Expect(err).NotTo(HaveOccurred())
		defer fileResp.Body.Close()
		body, err := io.ReadAll(fileResp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal(imageData))
	})

	It("escalates to the AI service when the basic extractor finds no amount", func() {
		apiServer.AppendHandlers(server.ServeHTTP)
		engine.text = "Corner Bakery\nfresh bread, two loaves"
		aiServer.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest("POST", "/chat/completions"),
			ghttp.RespondWithJSONEncoded(http.StatusOK, openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{
					Message: openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleAssistant,
						Content: `{"vendor":"Corner Bakery","amount":"180.00","date":"2024-02-03","category":"Food & Drink","description":"Bread","confidence":78,"reasoning":"Bakery purchase"}`,
					},
				}},
			}),
		))

		resp := upload(imageData)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var saved receipt.Receipt
		Expect(json.NewDecoder(resp.Body).Decode(&saved)).To(Succeed())
		Expect(saved.Expense.ParsedBy).To(Equal(expense.ParsedByPerplexityAI))
		Expect(saved.Expense.Amount.StringFixed(2)).To(Equal("180.00"))
		Expect(saved.Expense.Date).To(Equal("2024-02-03"))
		Expect(saved.Expense.Confidence).To(Equal(78))
		Expect(saved.Expense.Category).To(Equal(expense.FoodAndDrink))
		Expect(aiServer.ReceivedRequests()).To(HaveLen(1))
	})

	It("degrades to the basic result when the AI service rejects the key", func() {
		apiServer.AppendHandlers(server.ServeHTTP)
		engine.text = "Corner Bakery\nfresh bread, two loaves"
		aiServer.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "invalid_request_error"},
		}))

		resp := upload(imageData)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var saved receipt.Receipt
		Expect(json.NewDecoder(resp.Body).Decode(&saved)).To(Succeed())
		Expect(saved.Expense.ParsedBy).To(Equal(expense.ParsedByBasicAIFailed))
		Expect(saved.Expense.Confidence).To(Equal(30))
		Expect(saved.Expense.Vendor).To(Equal("Corner Bakery"))
	})

	It("rejects uploads that are not images", func() {
		apiServer.AppendHandlers(server.ServeHTTP)
		resp := upload([]byte("not an image"))
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		receipts, err := db.ListReceipts()
		Expect(err).NotTo(HaveOccurred())
		Expect(receipts).To(BeEmpty())
	})
})
