package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fiscalia/internal/domain"
	"fiscalia/internal/engine"
	"fiscalia/internal/errs"
	"fiscalia/internal/export"
	"fiscalia/internal/logger"
	"fiscalia/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Log      *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"fiscal_not_found"`
	Message string         `json:"message" example:"fiscal 7 does not exist"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"fiscal\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the case tracking API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = logger.L()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema violations are bad requests like any other validation failure.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Handle("/metrics", cfg.Engine.Metrics.Handler())

	hcfg := huma.DefaultConfig("Fiscalia API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerFiscales(group, cfg.Engine)
	registerCasos(group, cfg.Engine)
	registerReassignments(group, cfg.Engine)
	registerStatistics(group, cfg.Engine)
	registerExport(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// requestLogger logs one line per request and echoes a request id.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", reqID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
			}
			if status >= http.StatusInternalServerError {
				log.Error("request", fields...)
				return
			}
			log.Info("request", fields...)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps a core error onto the envelope. Storage failures never
// leak their cause; the engine has already logged it.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	e, ok := errs.As(err)
	if !ok {
		return newAPIError(http.StatusInternalServerError, errs.CodeStorage, "internal error", nil)
	}
	status := errs.HTTPStatus(e.Kind)
	if e.Kind == errs.KindStorage {
		return newAPIError(status, e.Code, "internal error", nil)
	}
	var details map[string]any
	if e.Field != "" {
		details = map[string]any{"field": e.Field}
	}
	return newAPIError(status, e.Code, e.Message, details)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var doc []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if doc == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			doc, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="es">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Fiscalia API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerFiscales(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-fiscal",
		Method:        http.MethodPost,
		Path:          "/fiscales",
		Summary:       "Register fiscal",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body RegisterFiscalRequest `json:"body"`
	}) (*struct {
		Body domain.Fiscal `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		f, err := e.RegisterFiscal(ctx, input.Body.toEngine())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Fiscal `json:"body"`
		}{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-fiscales",
		Method:      http.MethodGet,
		Path:        "/fiscales",
		Summary:     "List fiscales",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Fiscal `json:"body"`
	}, error) {
		items, err := e.ListFiscales(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Fiscal `json:"body"`
		}{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-fiscal",
		Method:      http.MethodGet,
		Path:        "/fiscales/{id}",
		Summary:     "Get fiscal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Fiscal `json:"body"`
	}, error) {
		f, err := e.GetFiscal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Fiscal `json:"body"`
		}{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-fiscalias",
		Method:      http.MethodGet,
		Path:        "/fiscalias",
		Summary:     "List fiscalias",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Fiscalia `json:"body"`
	}, error) {
		items, err := e.ListFiscalias(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Fiscalia `json:"body"`
		}{Body: nonNil(items)}, nil
	})
}

func registerCasos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-caso",
		Method:        http.MethodPost,
		Path:          "/casos",
		Summary:       "Create case",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.CreateCase(ctx, input.Body.toEngine())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-casos",
		Method:      http.MethodGet,
		Path:        "/casos",
		Summary:     "List cases",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		FiscalID int64  `query:"id_fiscal"`
		Status   string `query:"estado"`
	}) (*struct {
		Body []domain.Case `json:"body"`
	}, error) {
		items, err := e.FilterCases(ctx, repo.CaseFilters{FiscalID: input.FiscalID, Status: domain.CaseStatus(input.Status)})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Case `json:"body"`
		}{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-caso",
		Method:      http.MethodGet,
		Path:        "/casos/{id}",
		Summary:     "Get case",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		c, err := e.GetCase(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-caso",
		Method:      http.MethodPost,
		Path:        "/casos/{id}/estado",
		Summary:     "Change case status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   int64                 `path:"id"`
		Body TransitionCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.TransitionCase(ctx, engine.TransitionCaseRequest{CaseID: input.ID, Status: input.Body.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})
}

func registerReassignments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "reassign-caso",
		Method:      http.MethodPost,
		Path:        "/casos/reasignar",
		Summary:     "Reassign case to another fiscal",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body ReassignCaseRequest `json:"body"`
	}) (*struct {
		Body ReassignResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		entry, err := e.ReassignCase(ctx, input.Body.toEngine())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReassignResponse `json:"body"`
		}{Body: ReassignResponse{Message: engine.ConfirmationMessage(entry), Entry: entry}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reasignaciones",
		Method:      http.MethodGet,
		Path:        "/reasignaciones",
		Summary:     "List reassignment log, oldest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedReassignments `json:"body"`
	}, error) {
		if input.Limit <= 0 && input.Cursor == "" {
			items, err := e.ListReassignments(ctx)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body paginatedReassignments `json:"body"`
			}{Body: paginatedReassignments{Items: nonNil(items)}}, nil
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed < 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ReassignmentsAfter(ctx, cursorID, limit+1)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedReassignments{Items: []domain.ReassignmentLogEntry{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedReassignments `json:"body"`
		}{Body: resp}, nil
	})
}

func registerStatistics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "statistics-by-fiscal",
		Method:      http.MethodGet,
		Path:        "/casos/estadisticas",
		Summary:     "Case counts per fiscal and status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.StatisticsRow `json:"body"`
	}, error) {
		rows, err := e.StatisticsByFiscal(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.StatisticsRow `json:"body"`
		}{Body: nonNil(rows)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "statistics-by-status",
		Method:      http.MethodGet,
		Path:        "/casos/estadisticas/estado",
		Summary:     "Case counts per status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.StatusCount `json:"body"`
	}, error) {
		rows, err := e.StatisticsByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.StatusCount `json:"body"`
		}{Body: rows}, nil
	})
}

func registerExport(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "export-casos",
		Method:      http.MethodGet,
		Path:        "/casos/export",
		Summary:     "Export cases as csv, markdown, html or text",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Format string `query:"format" enum:"csv,markdown,html,text" default:"csv"`
	}) (*struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}, error) {
		format, err := export.ParseFormat(input.Format)
		if err != nil {
			return nil, handleError(err)
		}
		cases, err := e.ListCases(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		var buf bytes.Buffer
		if err := export.Cases(&buf, cases, format); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ContentType string `header:"Content-Type"`
			Body        []byte
		}{ContentType: format.ContentType(), Body: buf.Bytes()}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
