package router_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/handler"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/logger"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/repository"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/router"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/service"
	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

const seedDocument = `
products:
  - productID: 1
    name: Bird seed
    price: 3.50
  - productID: 2
    name: Cat litter
    price: 7.25
  - productID: 3
    name: Dog leash
    price: 12.99
`

func newAPI(mutate func(cfg *config.Config)) *echo.Echo {
	cfg := config.Default()
	cfg.Schema.Root = filepath.Join("..", "..", "schemas")
	cfg.Store.SeedFile = ""
	if mutate != nil {
		mutate(cfg)
	}

	log := zerolog.Nop()
	srv, err := server.New(cfg, &log, logger.NewLoggerService(cfg.Observability))
	Expect(err).NotTo(HaveOccurred())

	repos := repository.NewRepositories(srv)
	sets, err := repository.ParseSeeds([]byte(seedDocument))
	Expect(err).NotTo(HaveOccurred())
	Expect(repository.Seed(context.Background(), repos.Records, sets, &log)).To(Succeed())

	services, err := service.NewService(srv, repos)
	Expect(err).NotTo(HaveOccurred())

	return router.NewRouter(srv, handler.NewHandlers(srv, repos, services))
}

func do(api *echo.Echo, method, path, contentType, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func listIDs(api *echo.Echo, collection, idField string) []float64 {
	rec := do(api, http.MethodGet, "/"+collection, "", "")
	Expect(rec.Code).To(Equal(http.StatusOK))

	var records []map[string]interface{}
	Expect(json.Unmarshal(rec.Body.Bytes(), &records)).To(Succeed())

	ids := make([]float64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r[idField].(float64))
	}
	return ids
}

type errorBody struct {
	Code   string `json:"code"`
	Status int    `json:"status"`
	Errors []struct {
		Field string `json:"field"`
		Error string `json:"error"`
	} `json:"errors"`
}

func decodeError(rec *httptest.ResponseRecorder) errorBody {
	var body errorBody
	Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
	return body
}

var _ = Describe("Record API", func() {
	var api *echo.Echo

	BeforeEach(func() {
		api = newAPI(nil)
	})

	Describe("Given seeded products 1, 2 and 3", func() {
		It("lists them in insertion order as JSON", func() {
			rec := do(api, http.MethodGet, "/products", "", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get(echo.HeaderContentType)).To(HavePrefix(echo.MIMEApplicationJSON))
			Expect(rec.Body.String()).To(ContainSubstring(`"price":3.5`))
			Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 2, 3}))
		})

		It("lists an unseeded family as an empty array", func() {
			rec := do(api, http.MethodGet, "/sales", "", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(rec.Body.String())).To(Equal("[]"))
		})

		Describe("When posting a new JSON product", func() {
			var rec *httptest.ResponseRecorder

			JustBeforeEach(func() {
				rec = do(api, http.MethodPost, "/products", echo.MIMEApplicationJSON, `{"name":"bird seed","price":3.5}`)
			})

			It("answers 200 with a previously unused identifier", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))

				var created map[string]interface{}
				Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
				Expect(created["productID"]).NotTo(BeElementOf(1.0, 2.0, 3.0))
				Expect(created["name"]).To(Equal("bird seed"))
			})

			It("includes the record in the collection", func() {
				Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 2, 3, 4}))
			})
		})

		It("ignores an identifier sent in the body", func() {
			rec := do(api, http.MethodPost, "/products", echo.MIMEApplicationJSON, `{"productID":2,"name":"copy","price":1}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 2, 3, 4}))
		})

		It("answers an XML post in XML", func() {
			rec := do(api, http.MethodPost, "/products", echo.MIMEApplicationXML,
				`<product><name>Feeder</name><price>15.00</price></product>`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get(echo.HeaderContentType)).To(HavePrefix(echo.MIMEApplicationXML))
			Expect(rec.Body.String()).To(ContainSubstring("<productID>4</productID>"))
			Expect(rec.Body.String()).To(ContainSubstring("<name>Feeder</name>"))
		})

		It("rejects malformed JSON with 400 and leaves the store unchanged", func() {
			rec := do(api, http.MethodPost, "/products", echo.MIMEApplicationJSON, `{"name":"x",`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(rec).Code).To(Equal("BAD_REQUEST"))
			Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 2, 3}))
		})

		It("rejects a missing body with 400", func() {
			rec := do(api, http.MethodPost, "/products", echo.MIMEApplicationJSON, "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects JSON that violates the schema with field errors", func() {
			rec := do(api, http.MethodPost, "/products", echo.MIMEApplicationJSON, `{"name":"x","price":"cheap"}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			var fields []string
			for _, fe := range decodeError(rec).Errors {
				fields = append(fields, fe.Field)
			}
			Expect(fields).To(ContainElement("price"))
			Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 2, 3}))
		})

		It("rejects XML that violates the XSD and leaves the store unchanged", func() {
			rec := do(api, http.MethodPost, "/products", echo.MIMEApplicationXML,
				`<product><name>Feeder</name><price>cheap</price></product>`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 2, 3}))
		})

		It("rejects XML rooted at another family's element", func() {
			rec := do(api, http.MethodPost, "/products", echo.MIMEApplicationXML,
				`<customer><firstName>A</firstName><lastName>B</lastName></customer>`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		Describe("When deleting product 2", func() {
			var rec *httptest.ResponseRecorder

			JustBeforeEach(func() {
				rec = do(api, http.MethodDelete, "/products/2", "", "")
			})

			It("answers 200 and keeps 1 and 3", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(strings.TrimSpace(rec.Body.String())).To(Equal(`{"deleted":2}`))
				Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 3}))
			})

			It("answers 404 the second time", func() {
				again := do(api, http.MethodDelete, "/products/2", "", "")
				Expect(again.Code).To(Equal(http.StatusNotFound))
				Expect(decodeError(again).Code).To(Equal("PRODUCT_NOT_FOUND"))
			})

			It("does not reuse the identifier", func() {
				created := do(api, http.MethodPost, "/products", echo.MIMEApplicationJSON, `{"name":"again","price":1}`)
				Expect(created.Code).To(Equal(http.StatusOK))
				Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 3, 4}))
			})
		})

		It("finds the last record, not only the first", func() {
			rec := do(api, http.MethodGet, "/products/3", "", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"name":"Dog leash"`))
		})

		It("answers a single record in XML when asked", func() {
			req := httptest.NewRequest(http.MethodGet, "/products/1", nil)
			req.Header.Set(echo.HeaderAccept, "application/xml, */*")
			rec := httptest.NewRecorder()
			api.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("<name>Bird seed</name>"))
		})

		It("answers 404 for an unknown record", func() {
			Expect(do(api, http.MethodGet, "/products/42", "", "").Code).To(Equal(http.StatusNotFound))
		})

		It("answers 400 for a non-numeric identifier", func() {
			Expect(do(api, http.MethodDelete, "/products/abc", "", "").Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Updating", func() {
		It("replaces the record in place and keeps the path identifier", func() {
			rec := do(api, http.MethodPut, "/products/2", echo.MIMEApplicationJSON, `{"productID":9,"name":"Litter XL","price":9.5}`)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var updated map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &updated)).To(Succeed())
			Expect(updated["productID"]).To(Equal(2.0))
			Expect(updated["name"]).To(Equal("Litter XL"))
			Expect(listIDs(api, "products", "productID")).To(Equal([]float64{1, 2, 3}))
		})

		It("answers 404 for an unknown identifier", func() {
			rec := do(api, http.MethodPut, "/products/42", echo.MIMEApplicationJSON, `{"name":"x","price":1}`)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("validates the new payload", func() {
			rec := do(api, http.MethodPut, "/products/2", echo.MIMEApplicationJSON, `{"price":1}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Other families", func() {
		It("creates customers, employees and sales", func() {
			for _, tc := range []struct{ path, body string }{
				{"/customers", `{"firstName":"Ada","lastName":"Lovelace"}`},
				{"/employees", `{"firstName":"Alan","middleInitial":"M","lastName":"Turing"}`},
				{"/sales", `{"salesPersonalID":1,"customerID":1,"productID":1,"quantity":2}`},
			} {
				rec := do(api, http.MethodPost, tc.path, echo.MIMEApplicationJSON, tc.body)
				Expect(rec.Code).To(Equal(http.StatusOK), tc.path)
			}
			Expect(listIDs(api, "sales", "salesID")).To(Equal([]float64{1}))
		})

		It("rejects a sale with a zero quantity", func() {
			rec := do(api, http.MethodPost, "/sales", echo.MIMEApplicationJSON, `{"salesPersonalID":1,"customerID":1,"productID":1,"quantity":0}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("System routes", func() {
		It("reports a healthy store", func() {
			rec := do(api, http.MethodGet, "/status", "", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"status":"healthy"`))
		})

		It("exposes request metrics", func() {
			do(api, http.MethodGet, "/products", "", "")
			rec := do(api, http.MethodGet, "/metrics", "", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`restapi_http_requests_total{method="GET",route="/products",status="200"} 1`))
		})

		It("answers unknown routes with the error shape", func() {
			rec := do(api, http.MethodGet, "/nope", "", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(decodeError(rec).Code).To(Equal("NOT_FOUND"))
		})

		It("echoes the request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			req.Header.Set("X-Request-ID", "abc-123")
			rec := httptest.NewRecorder()
			api.ServeHTTP(rec, req)
			Expect(rec.Header().Get("X-Request-ID")).To(Equal("abc-123"))
		})
	})

	Describe("With an auth secret configured", func() {
		var secured *echo.Echo

		BeforeEach(func() {
			secured = newAPI(func(cfg *config.Config) {
				cfg.Auth.SecretKey = "sk_test_restapi"
			})
		})

		It("keeps reads public", func() {
			Expect(do(secured, http.MethodGet, "/products", "", "").Code).To(Equal(http.StatusOK))
			Expect(do(secured, http.MethodGet, "/products/1", "", "").Code).To(Equal(http.StatusOK))
		})

		It("rejects writes without a session token", func() {
			for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
				path := "/products"
				if method != http.MethodPost {
					path = "/products/1"
				}
				rec := do(secured, method, path, echo.MIMEApplicationJSON, `{"name":"x","price":1}`)
				Expect(rec.Code).To(Equal(http.StatusUnauthorized), method)
				Expect(decodeError(rec).Code).To(Equal("UNAUTHORIZED"), method)
			}
			Expect(listIDs(secured, "products", "productID")).To(Equal([]float64{1, 2, 3}))
		})

		It("rejects a malformed bearer token", func() {
			req := httptest.NewRequest(http.MethodDelete, "/products/1", nil)
			req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
			rec := httptest.NewRecorder()
			secured.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(decodeError(rec).Code).To(Equal("UNAUTHORIZED"))
			Expect(listIDs(secured, "products", "productID")).To(Equal([]float64{1, 2, 3}))
		})
	})

	Describe("Rate limiting", func() {
		It("answers 429 once the budget is spent", func() {
			limited := newAPI(func(cfg *config.Config) {
				cfg.Server.RateLimit = 1
			})
			Expect(do(limited, http.MethodGet, "/products", "", "").Code).To(Equal(http.StatusOK))

			rec := do(limited, http.MethodGet, "/products", "", "")
			Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
			Expect(decodeError(rec).Code).To(Equal("TOO_MANY_REQUESTS"))
		})
	})
})
