// Copyright 2024 Potter Framework Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akriventsev/sportstore/framework/core"
)

// ValidationOptions опции для валидации OpenAPI
type ValidationOptions struct {
	ValidateRequest  bool
	ValidateResponse bool
	// MultiError собирает все ошибки запроса вместо первой
	MultiError bool
	Logger     *zap.Logger
}

// DefaultValidationOptions возвращает опции валидации по умолчанию
func DefaultValidationOptions() *ValidationOptions {
	return &ValidationOptions{
		ValidateRequest:  true,
		ValidateResponse: false,
		MultiError:       true,
	}
}

// OpenAPIValidator валидатор HTTP запросов по OpenAPI спецификации
type OpenAPIValidator struct {
	spec    *openapi3.T
	router  routers.Router
	options *ValidationOptions
	logger  *zap.Logger
}

// NewOpenAPIValidator создает валидатор из документа (YAML или JSON), обычно встроенного через embed
func NewOpenAPIValidator(document []byte, options *ValidationOptions) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()

	spec, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := spec.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	router, err := legacy.NewRouter(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	if options == nil {
		options = DefaultValidationOptions()
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAPIValidator{
		spec:    spec,
		router:  router,
		options: options,
		logger:  logger.With(zap.String("component", "openapi")),
	}, nil
}

// responseWriter обертка для gin.ResponseWriter для перехвата ответа
type responseWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Middleware возвращает Gin middleware для валидации запросов.
// Пути, не описанные в спецификации, пропускаются без проверки.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, pathParams, err := v.router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    &openapi3filter.Options{MultiError: v.options.MultiError},
		}

		if v.options.ValidateRequest {
			if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
				v.handleValidationError(c, err)
				c.Abort()
				return
			}
		}

		if !v.options.ValidateResponse {
			c.Next()
			return
		}

		rw := &responseWriter{ResponseWriter: c.Writer}
		c.Writer = rw
		c.Next()

		if err := v.validateResponse(c, input, rw.Status(), rw.body.Bytes()); err != nil {
			v.logger.Warn("response does not match OpenAPI spec",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
	}
}

func (v *OpenAPIValidator) validateResponse(c *gin.Context, request *openapi3filter.RequestValidationInput, status int, body []byte) error {
	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: request,
		Status:                 status,
		Header:                 c.Writer.Header(),
		Body:                   io.NopCloser(bytes.NewReader(body)),
		Options:                &openapi3filter.Options{IncludeResponseStatus: true},
	}
	return openapi3filter.ValidateResponse(c.Request.Context(), input)
}

// handleValidationError отвечает 400 в общем формате ошибок API
func (v *OpenAPIValidator) handleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code":    core.CodeInvalidArgument,
			"message": "request does not match API schema",
			"details": formatValidationError(err),
		},
	})
}

// formatValidationError раскладывает ошибку kin-openapi на отдельные сообщения
func formatValidationError(err error) []ValidationError {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var result []ValidationError
		for _, e := range multi {
			result = append(result, formatValidationError(e)...)
		}
		return result
	}

	ve := ValidationError{Message: err.Error()}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			ve.Field = reqErr.Parameter.Name
		}
		ve.Message = reqErr.Error()
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if path := schemaErr.JSONPointer(); len(path) > 0 {
			ve.Field = strings.Join(path, ".")
		}
		ve.Message = schemaErr.Reason
	}
	return []ValidationError{ve}
}

// ValidationError структура ошибки валидации
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// GetSpec возвращает загруженную OpenAPI спецификацию
func (v *OpenAPIValidator) GetSpec() *openapi3.T {
	return v.spec
}
