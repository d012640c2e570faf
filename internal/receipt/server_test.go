package receipt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"receipt-ocr-service/internal/recognition"
)

func multipartUpload(filename string, data []byte) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	part, _ := writer.CreateFormFile("file", filename)
	part.Write(data)
	writer.Close()
	return &b, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		recognizer  *mockRecognizer
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewService(db, recognizer, storage, NewNormalizer(DefaultOptions()))
		server = NewServerWithMux(service, auth, "test", http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		recognizer = newMockRecognizer()
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleInfo", func() {
		It("should return status OK", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
		})

		It("should report the service name and version", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			var info map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&info)).NotTo(HaveOccurred())
			Expect(info["status"]).To(Equal("running"))
			Expect(info["service"]).To(Equal("receipt-ocr-service"))
			Expect(info["version"]).To(Equal("test"))
		})
	})

	Describe("handleHealth", func() {
		It("should return healthy without authentication", func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()

			resp, err := http.Get(ghttpServer.URL() + "/health")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var health map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&health)).NotTo(HaveOccurred())
			Expect(health["status"]).To(Equal("healthy"))
		})
	})

	Describe("handleExtractReceipt", func() {
		When("upload succeeds", func() {
			It("should return status Created", func() {
				body, contentType := multipartUpload("test.jpg", []byte("fake image data"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				resp.Body.Close()
			})

			It("should return a success envelope with the receipt data", func() {
				body, contentType := multipartUpload("test.jpg", []byte("fake image data"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				var response ExtractResponse
				Expect(json.NewDecoder(resp.Body).Decode(&response)).NotTo(HaveOccurred())
				Expect(response.Success).To(BeTrue())
				Expect(response.ID).NotTo(BeEmpty())
				Expect(response.Error).To(BeEmpty())
				Expect(response.ReceiptData).NotTo(BeNil())
				Expect(*response.ReceiptData.MerchantName).To(Equal("Corner Grocer"))
				Expect(response.ReceiptData.ReceiptStatus).To(Equal(StatusVerified))
			})

			It("should set Content-Type to application/json", func() {
				body, contentType := multipartUpload("test.jpg", []byte("fake image data"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			})
		})

		When("upload is a PNG file", func() {
			It("should return status Created", func() {
				body, contentType := multipartUpload("test.png", []byte("fake image data"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				resp.Body.Close()
			})
		})

		When("upload is a PDF file", func() {
			It("should return status Created", func() {
				body, contentType := multipartUpload("test.pdf", []byte("fake pdf data"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				resp.Body.Close()
			})
		})

		When("the file type is not supported", func() {
			It("should return status Bad Request with an error envelope", func() {
				body, contentType := multipartUpload("notes.txt", []byte("plain text"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var response ExtractResponse
				Expect(json.NewDecoder(resp.Body).Decode(&response)).NotTo(HaveOccurred())
				Expect(response.Success).To(BeFalse())
				Expect(response.Error).To(ContainSubstring("unsupported file type"))
				Expect(response.ReceiptData).To(BeNil())
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var response ExtractResponse
				Expect(json.NewDecoder(resp.Body).Decode(&response)).NotTo(HaveOccurred())
				Expect(response.Success).To(BeFalse())
				Expect(response.Error).To(ContainSubstring("file"))
			})
		})

		When("the multipart form is invalid", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", "multipart/form-data", bytes.NewBufferString("invalid"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var response ExtractResponse
				Expect(json.NewDecoder(resp.Body).Decode(&response)).NotTo(HaveOccurred())
				Expect(response.Error).To(ContainSubstring("Error parsing form"))
			})
		})

		When("recognition fails", func() {
			BeforeEach(func() {
				recognizer.recognizeErr = errors.New("provider unavailable")
				setupServer()
			})

			It("should return status Bad Gateway", func() {
				body, contentType := multipartUpload("test.jpg", []byte("fake image data"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				resp.Body.Close()
			})

			It("should return the error in the envelope", func() {
				body, contentType := multipartUpload("test.jpg", []byte("fake image data"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				var response ExtractResponse
				Expect(json.NewDecoder(resp.Body).Decode(&response)).NotTo(HaveOccurred())
				Expect(response.Success).To(BeFalse())
				Expect(response.Error).To(ContainSubstring("provider unavailable"))
			})
		})

		When("recognition returns a poor result", func() {
			BeforeEach(func() {
				recognizer.raw = &recognition.RawResult{
					Fields: map[string]recognition.RawField{},
				}
				setupServer()
			})

			It("should still return Created with a flagged record", func() {
				body, contentType := multipartUpload("test.jpg", []byte("fake image data"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var response ExtractResponse
				Expect(json.NewDecoder(resp.Body).Decode(&response)).NotTo(HaveOccurred())
				Expect(response.Success).To(BeTrue())
				Expect(response.ReceiptData.ReceiptStatus).To(Equal(StatusFailed))
			})
		})
	})

	Describe("handleListExtractions", func() {
		When("extractions exist", func() {
			BeforeEach(func() {
				db.extractions["id1"] = &Extraction{ID: "id1"}
				db.extractions["id2"] = &Extraction{ID: "id2"}
			})

			It("should return all extractions", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var extractions []*Extraction
				Expect(json.NewDecoder(resp.Body).Decode(&extractions)).NotTo(HaveOccurred())
				Expect(extractions).To(HaveLen(2))
			})

			It("should set Content-Type to application/json", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			})
		})

		When("no extractions exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				var extractions []*Extraction
				Expect(json.Unmarshal(body, &extractions)).NotTo(HaveOccurred())
				Expect(extractions).To(BeEmpty())
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("database error")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetExtraction", func() {
		When("the extraction exists", func() {
			BeforeEach(func() {
				db.extractions["test-id"] = &Extraction{ID: "test-id", ContentType: "image/jpeg"}
			})

			It("should return the extraction", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts/test-id")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var got Extraction
				Expect(json.NewDecoder(resp.Body).Decode(&got)).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal("test-id"))
				Expect(got.ContentType).To(Equal("image/jpeg"))
			})
		})

		When("the extraction does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts/nonexistent")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("Extraction not found"))
			})
		})
	})

	Describe("handleGetDocument", func() {
		When("the extraction and document exist", func() {
			BeforeEach(func() {
				db.extractions["test-id"] = &Extraction{
					ID:          "test-id",
					Filename:    "test-id_receipt.jpg",
					ContentType: "image/jpeg",
				}
				storage.files["test-id_receipt.jpg"] = []byte("file content")
			})

			It("should return the document with its content type", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts/test-id/file")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(Equal("file content"))
			})
		})

		When("the extraction does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts/nonexistent/file")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("File not found"))
			})
		})

		When("the document is missing from storage", func() {
			BeforeEach(func() {
				db.extractions["test-id"] = &Extraction{
					ID:       "test-id",
					Filename: "missing.jpg",
				}
			})

			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts/test-id/file")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleDeleteExtraction", func() {
		When("deletion succeeds", func() {
			BeforeEach(func() {
				db.extractions["test-id"] = &Extraction{ID: "test-id", Filename: "test-id_receipt.jpg"}
				storage.files["test-id_receipt.jpg"] = []byte("data")
			})

			It("should return status No Content", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/receipts/test-id", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				resp.Body.Close()
			})

			It("should remove the extraction", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/receipts/test-id", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				_, getErr := service.GetExtraction("test-id")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("the extraction does not exist", func() {
			It("should return status Internal Server Error", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/receipts/nonexistent", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("Error deleting extraction"))
			})
		})
	})

	Describe("authenticate", func() {
		When("no auth is configured", func() {
			It("should return true", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(server.authenticate(req)).To(BeTrue())
			})
		})

		When("valid credentials are provided", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				setupServer()
			})

			It("should return true", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				credentials := base64.StdEncoding.EncodeToString([]byte("user:pass"))
				req.Header.Set("Authorization", "Basic "+credentials)
				Expect(server.authenticate(req)).To(BeTrue())
			})
		})

		When("invalid credentials are provided", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				setupServer()
			})

			It("should return false", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				credentials := base64.StdEncoding.EncodeToString([]byte("user:wrong"))
				req.Header.Set("Authorization", "Basic "+credentials)
				Expect(server.authenticate(req)).To(BeFalse())
			})
		})

		When("no authorization header is provided", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				setupServer()
			})

			It("should return false", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(server.authenticate(req)).To(BeFalse())
			})
		})
	})

	Describe("requireAuth", func() {
		When("the request is unauthorized", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				setupServer()
			})

			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})

			It("should set WWW-Authenticate header", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.Header.Get("WWW-Authenticate")).NotTo(BeEmpty())
			})
		})
	})
})
